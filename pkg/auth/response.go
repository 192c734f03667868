package auth

import "net/http"

// Response is the terminal HTTP-shaped outcome of a challenge, forbid,
// sign-in, or sign-out: a status code plus headers. Successful
// authentication never produces one. Adapters translate it into their native
// response type and short-circuit the handler chain.
type Response struct {
	Status int
	Header http.Header
}

// NewResponse creates a response descriptor with the given status code.
func NewResponse(status int) Response {
	return Response{Status: status, Header: make(http.Header)}
}

// Write translates the descriptor onto a net/http ResponseWriter.
func (r Response) Write(w http.ResponseWriter) {
	for name, values := range r.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
}
