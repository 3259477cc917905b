package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rescp17/sneakvlc/pkg/descriptor"
	"github.com/rescp17/sneakvlc/pkg/failure"
	"github.com/rescp17/sneakvlc/pkg/feed"
	"github.com/rescp17/sneakvlc/pkg/rendezvous"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	ServiceName = "sneakvlc"

	maxBodyBytes = 1 << 16
	qrSize       = 256
)

// Version is reported by /health. It is set from the build.
var Version = "dev"

// PunchRequest is the body of POST /api/punch.
type PunchRequest struct {
	Hash string `json:"hash"`
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// PunchResponse is returned by a successful POST /api/punch.
type PunchResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Descriptor string `json:"descriptor"`
}

// DescriptorResponse is returned by GET /api/entries/{id}/descriptor.
type DescriptorResponse struct {
	Descriptor string `json:"descriptor"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Version     string `json:"version"`
	Entries     int    `json:"entries"`
	Subscribers int    `json:"subscribers"`
}

// Server is the HTTP surface of the rendezvous table.
type Server struct {
	table *rendezvous.Table
	pub   *feed.Publisher
	mux   *http.ServeMux
	log   *slog.Logger
}

// NewServer wires the table and the feed publisher into an http.Handler.
func NewServer(table *rendezvous.Table, pub *feed.Publisher, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		table: table,
		pub:   pub,
		mux:   http.NewServeMux(),
		log:   log.With(slog.String("component", "api")),
	}
	s.registerRoutes()
	return s
}

// ServeHTTP allows the Server struct to satisfy the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/punch", s.handlePunch)
	s.mux.HandleFunc("POST /api/entries/{id}/refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /api/lookup/{hash}", s.handleLookup)
	s.mux.HandleFunc("GET /api/entries", s.handleEntries)
	s.mux.HandleFunc("DELETE /api/entries/{id}", s.handleRemove)
	s.mux.HandleFunc("GET /api/entries/{id}/descriptor", s.handleDescriptor)
	s.mux.HandleFunc("GET /api/entries/{id}/qr", s.handleQR)
	s.mux.Handle("GET "+feed.Path, feed.NewHandler(s.pub, s.table, s.log))
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

func (s *Server) handlePunch(w http.ResponseWriter, r *http.Request) {
	var req PunchRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: invalid request body", rendezvous.ErrInvalidEntry))
		return
	}
	if strings.TrimSpace(req.Hash) == "" || strings.TrimSpace(req.IP) == "" || req.Port == 0 {
		s.writeError(w, fmt.Errorf("%w: missing required fields", rendezvous.ErrInvalidEntry))
		return
	}

	// Normalizes the hash and rejects anything that could not be encoded.
	d, err := descriptor.New(req.Hash, strings.TrimSpace(req.IP), req.Port)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", rendezvous.ErrInvalidEntry, err))
		return
	}

	id, err := s.table.Insert(d.Hash, d.IP, d.Port)
	if err != nil {
		s.log.Warn("Punch rejected", slog.String("hash", d.Hash), slog.Any("error", err))
		s.writeError(w, err)
		return
	}

	s.log.Info("Entry registered", slog.String("id", id), slog.String("hash", d.Hash), slog.String("address", d.Address()))
	writeJSON(w, http.StatusOK, PunchResponse{ID: id, Status: "success", Descriptor: d.String()})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.table.Refresh(r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	entry, err := s.table.Lookup(r.PathValue("hash"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleEntries(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.table.Snapshot())
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.table.Remove(id); err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info("Entry withdrawn", slog.String("id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) entryDescriptor(id string) (descriptor.Descriptor, error) {
	entry, err := s.table.Get(id)
	if err != nil {
		return descriptor.Descriptor{}, err
	}
	return descriptor.New(entry.Hash, entry.IP, entry.Port)
}

func (s *Server) handleDescriptor(w http.ResponseWriter, r *http.Request) {
	d, err := s.entryDescriptor(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DescriptorResponse{Descriptor: d.String()})
}

func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	d, err := s.entryDescriptor(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	png, err := qrcode.Encode(d.String(), qrcode.Medium, qrSize)
	if err != nil {
		s.log.Error("Cannot render QR code", slog.Any("error", err))
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:      "healthy",
		Service:     ServiceName,
		Version:     Version,
		Entries:     len(s.table.Snapshot()),
		Subscribers: s.pub.Count(),
	})
}

// StatusCode maps an error kind onto an HTTP status.
func StatusCode(kind failure.Kind) int {
	switch kind {
	case failure.MalformedDescriptor, failure.Invalid:
		return http.StatusBadRequest
	case failure.TableFull:
		return http.StatusServiceUnavailable
	case failure.NotFound:
		return http.StatusNotFound
	case failure.TransportFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := failure.Classify(err)
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		kind = failure.Invalid
	}
	writeJSON(w, StatusCode(kind), ErrorResponse{Error: err.Error(), Kind: kind.String()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
