package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/specialistvlad/cyoaflow/internal/document"
	"github.com/specialistvlad/cyoaflow/internal/export"
	"github.com/specialistvlad/cyoaflow/internal/graph"
	"github.com/specialistvlad/cyoaflow/internal/session"
	"github.com/specialistvlad/cyoaflow/internal/traversal"
)

type createNodeRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
}

type updateNodeRequest struct {
	Name        *string  `json:"name" validate:"omitempty,min=1"`
	Description *string  `json:"description"`
	X           *float64 `json:"x" validate:"required_with=Y"`
	Y           *float64 `json:"y" validate:"required_with=X"`
}

type connectionRequest struct {
	Target string `json:"target" validate:"required"`
	Label  string `json:"label"`
}

type saveRequest struct {
	Path string `json:"path"`
}

type exportRequest struct {
	Path  string `json:"path" validate:"required"`
	Title string `json:"title"`
}

type statusResponse struct {
	Status string `json:"status"`
	Dirty  bool   `json:"dirty"`
	Path   string `json:"path"`
	Entry  string `json:"entry"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (srv *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (srv *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Status: srv.session.Status(),
		Dirty:  srv.session.Dirty(),
		Path:   srv.session.Path(),
		Entry:  srv.session.Entry(),
	})
}

func (srv *Server) listNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, srv.session.Nodes())
}

func (srv *Server) getNode(w http.ResponseWriter, r *http.Request) {
	name, err := nameParam(r)
	if err != nil {
		srv.fail(w, "get_node", err)
		return
	}
	n, ok := srv.session.Node(name)
	if !ok {
		srv.fail(w, "get_node", fmt.Errorf("node %q: %w", name, graph.ErrUnknownNode))
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (srv *Server) createNode(w http.ResponseWriter, r *http.Request) {
	var req createNodeRequest
	if err := srv.decode(r, &req); err != nil {
		srv.fail(w, "create_node", err)
		return
	}
	if _, err := srv.session.CreateNode(req.Name, req.X, req.Y); err != nil {
		srv.fail(w, "create_node", err)
		return
	}
	if req.Description != nil {
		if err := srv.session.SetDescription(req.Name, *req.Description); err != nil {
			srv.fail(w, "create_node", err)
			return
		}
	}
	n, _ := srv.session.Node(req.Name)
	srv.succeed("create_node")
	writeJSON(w, http.StatusCreated, n)
}

func (srv *Server) updateNode(w http.ResponseWriter, r *http.Request) {
	name, err := nameParam(r)
	if err != nil {
		srv.fail(w, "update_node", err)
		return
	}
	var req updateNodeRequest
	if err := srv.decode(r, &req); err != nil {
		srv.fail(w, "update_node", err)
		return
	}

	n, err := srv.session.UpdateNode(name, session.NodeUpdate{
		Name:        req.Name,
		Description: req.Description,
		X:           req.X,
		Y:           req.Y,
	})
	if err != nil {
		srv.fail(w, "update_node", err)
		return
	}
	srv.succeed("update_node")
	writeJSON(w, http.StatusOK, n)
}

func (srv *Server) deleteNode(w http.ResponseWriter, r *http.Request) {
	name, err := nameParam(r)
	if err == nil {
		err = srv.session.DeleteNode(name)
	}
	if err != nil {
		srv.fail(w, "delete_node", err)
		return
	}
	srv.succeed("delete_node")
	w.WriteHeader(http.StatusNoContent)
}

func (srv *Server) addConnection(w http.ResponseWriter, r *http.Request) {
	name, err := nameParam(r)
	if err != nil {
		srv.fail(w, "add_connection", err)
		return
	}
	var req connectionRequest
	if err := srv.decode(r, &req); err != nil {
		srv.fail(w, "add_connection", err)
		return
	}
	if err := srv.session.AddConnection(name, req.Target, req.Label); err != nil {
		srv.fail(w, "add_connection", err)
		return
	}
	conns, err := srv.session.Connections(name)
	if err != nil {
		srv.fail(w, "add_connection", err)
		return
	}
	srv.succeed("add_connection")
	writeJSON(w, http.StatusCreated, conns)
}

func (srv *Server) removeConnection(w http.ResponseWriter, r *http.Request) {
	name, err := nameParam(r)
	if err != nil {
		srv.fail(w, "remove_connection", err)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		srv.fail(w, "remove_connection", badRequest(fmt.Errorf("invalid connection index: %w", err)))
		return
	}
	if err := srv.session.RemoveConnection(name, index); err != nil {
		srv.fail(w, "remove_connection", err)
		return
	}
	srv.succeed("remove_connection")
	w.WriteHeader(http.StatusNoContent)
}

func (srv *Server) save(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := srv.decode(r, &req); err != nil {
		srv.fail(w, "save", err)
		return
	}
	if err := srv.session.Save(r.Context(), req.Path); err != nil {
		srv.fail(w, "save", err)
		return
	}
	srv.succeed("save")
	srv.status(w, r)
}

func (srv *Server) export(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := srv.decode(r, &req); err != nil {
		srv.fail(w, "export", err)
		return
	}
	if err := srv.session.Export(r.Context(), req.Path, exportTitle(req.Title)...); err != nil {
		srv.fail(w, "export", err)
		return
	}
	srv.succeed("export")
	writeJSON(w, http.StatusOK, map[string]string{"path": req.Path})
}

func exportTitle(title string) []export.Option {
	if title == "" {
		return nil
	}
	return []export.Option{export.WithTitle(title)}
}

// requestError marks errors caused by the request itself.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &requestError{err: err}
}

// decode reads a JSON body into v and validates it. An empty body decodes
// to the zero value before validation.
func (srv *Server) decode(r *http.Request, v any) error {
	if r.ContentLength != 0 {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return badRequest(fmt.Errorf("invalid request body: %w", err))
		}
	}
	if err := srv.validate.Struct(v); err != nil {
		return badRequest(err)
	}
	return nil
}

// nameParam returns the decoded node name. chi matches against RawPath when
// the request has one, so only then is the parameter still escaped.
func nameParam(r *http.Request) (string, error) {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath == "" {
		return name, nil
	}
	name, err := url.PathUnescape(name)
	if err != nil {
		return "", badRequest(fmt.Errorf("invalid node name: %w", err))
	}
	return name, nil
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var reqErr *requestError
	var validationErrs validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrs), errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.Is(err, graph.ErrUnknownNode), errors.Is(err, graph.ErrUnknownConnection):
		return http.StatusNotFound
	case errors.Is(err, graph.ErrDuplicateName):
		return http.StatusConflict
	case errors.Is(err, graph.ErrUnknownTarget),
		errors.Is(err, graph.ErrInvalidPosition),
		errors.Is(err, traversal.ErrMissingEntryNode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, document.ErrUnsupportedFormat), errors.Is(err, session.ErrNoPath):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (srv *Server) fail(w http.ResponseWriter, operation string, err error) {
	srv.operations.WithLabelValues(operation, "error").Inc()
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func (srv *Server) succeed(operation string) {
	srv.operations.WithLabelValues(operation, "ok").Inc()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
