package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/cloudx-io/auctionhouse/api"
)

const (
	readTimeout    = 30 * time.Second
	maxRequestSize = 1 << 20
)

// Server accepts one JSON request per TCP connection, the client half-closing after writing it, and
// answers with one JSON response.
type Server struct {
	service    *Service
	maxWorkers int
	metrics    *Metrics
	logger     *zap.Logger
}

func NewServer(service *Service, maxWorkers int, metrics *Metrics, logger *zap.Logger) *Server {
	return &Server{service: service, maxWorkers: maxWorkers, metrics: metrics, logger: logger}
}

// Serve accepts connections on listener until ctx is done.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	go func() {
		<-ctx.Done()
		if err := listener.Close(); err != nil {
			s.logger.Error("Failed to close listener", zap.Error(err))
		}
	}()

	semaphore := make(chan struct{}, s.maxWorkers)
	s.logger.Info("Worker pool initialized", zap.Int("max_workers", s.maxWorkers))

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return ctx.Err()
			}
			s.logger.Error("Failed to accept connection", zap.Error(err))
			continue
		}

		// Acquire worker slot - immediate rejection if pool full
		select {
		case semaphore <- struct{}{}:
			s.metrics.WorkersBusy.Inc()
			go func(c net.Conn) {
				defer func() {
					s.metrics.WorkersBusy.Dec()
					<-semaphore
				}()
				s.handleConnection(ctx, c)
			}(conn)
		default:
			s.metrics.Rejected.Inc()
			s.logger.Info("No workers available, rejecting connection")
			if err := conn.Close(); err != nil {
				s.logger.Error("Failed to close rejected connection", zap.Error(err))
			}
		}
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in handleConnection", zap.Any("panic", r))
		}
		if err := conn.Close(); err != nil {
			s.logger.Error("Failed to close connection", zap.Error(err))
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(conn, maxRequestSize)); err != nil {
		s.logger.Error("Failed to read request", zap.Error(err))
		return
	}

	resp := s.respond(ctx, buf.Bytes())

	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.logger.Error("Failed to encode response", zap.String("type", resp.Type), zap.Error(err))
		return
	}
	s.logger.Debug("Sent response", zap.String("type", resp.Type), zap.Bool("success", resp.Success))
}

// respond decodes one request and executes it.
func (s *Server) respond(ctx context.Context, raw []byte) api.Response {
	var req api.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		s.logger.Error("Failed to decode request", zap.Error(err))
		return api.Response{
			Type:    "error",
			Message: fmt.Sprintf("Failed to decode request: %v", err),
			Kind:    "invalid_params",
		}
	}
	s.logger.Info("Received request", zap.String("type", req.Type), zap.String("caller", req.Caller))
	return s.service.Handle(ctx, req)
}
