package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"okinoko_moloch/contract"
	"okinoko_moloch/indexer"
	"okinoko_moloch/sdk"
)

const defaultPageSize = 50

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve read-only getters and prometheus metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withNode(cmd.Context(), func(n *node) error {
				signalCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				return serve(signalCtx, n)
			})
		},
	}
}

func serve(ctx context.Context, n *node) error {
	server := &http.Server{
		Addr:              n.cfg.MetricsAddr,
		Handler:           newAPI(n),
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	// bind first so a port conflict fails the command instead of a goroutine
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()
	n.logger.Info("serving getters and metrics on "+ln.Addr().String(), "component", programName)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	//nolint:contextcheck
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

type api struct {
	n      *node
	logger *slog.Logger
}

type errorResponse struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

func newAPI(n *node) http.Handler {
	a := &api{n: n, logger: n.logger.With("component", "api")}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(n.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /daos", a.handleInstances)
	mux.HandleFunc("GET /daos/{dao}/proposals", a.withDAO(a.handleProposals))
	mux.HandleFunc("GET /daos/{dao}/proposals/{id}", a.withDAO(a.handleProposal))
	mux.HandleFunc("GET /daos/{dao}/proposals/{id}/votes", a.withDAO(a.handleVotes))
	mux.HandleFunc("GET /daos/{dao}/seats", a.withDAO(a.handleSeats))
	mux.HandleFunc("GET /daos/{dao}/accounts/{addr}", a.withDAO(a.handleAccount))
	mux.HandleFunc("GET /daos/{dao}/accounts/{addr}/claims", a.withDAO(a.handleClaims))
	mux.HandleFunc("GET /daos/{dao}/transfers", a.withDAO(a.handleTransfers))
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{
		StatusCode: status,
		Error:      http.StatusText(status),
		Message:    message,
	})
}

// fail maps contract and indexer errors onto HTTP status codes.
func (a *api) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, contract.ErrInvalidInput), errors.Is(err, indexer.ErrProposalNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		a.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type daoHandler func(ctx context.Context, w http.ResponseWriter, r *http.Request, d *contract.DAO)

func (a *api) withDAO(h daoHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := a.n.factory.Instance(sdk.Address(r.PathValue("dao")))
		if err != nil {
			a.fail(w, err)
			return
		}
		ctx, err := a.n.viewAt(r.Context())
		if err != nil {
			a.fail(w, err)
			return
		}
		h(ctx, w, r, d)
	}
}

func pageParams(r *http.Request) (offset, limit int) {
	limit = defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= defaultPageSize {
		limit = v
	}
	return offset, limit
}

func (a *api) handleInstances(w http.ResponseWriter, _ *http.Request) {
	all, err := a.n.factory.Instances()
	if err != nil {
		a.fail(w, err)
		return
	}
	out := make([]string, len(all))
	for i, addr := range all {
		out[i] = addr.String()
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) handleProposals(ctx context.Context, w http.ResponseWriter, r *http.Request, d *contract.DAO) {
	offset, limit := pageParams(r)
	ids, err := d.Proposals(ctx, offset, limit)
	if err != nil {
		a.fail(w, err)
		return
	}
	out := make([]*proposalView, 0, len(ids))
	for _, id := range ids {
		v, err := loadProposal(ctx, d, id)
		if err != nil {
			a.fail(w, err)
			return
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) handleProposal(ctx context.Context, w http.ResponseWriter, r *http.Request, d *contract.DAO) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	v, err := loadProposal(ctx, d, id)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleVotes serves the live ballots out of the read model; the contract
// keeps no per-proposal voter list.
func (a *api) handleVotes(_ context.Context, w http.ResponseWriter, r *http.Request, d *contract.DAO) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	votes, err := a.n.index.Votes(d.Address().String(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, votes)
}

func (a *api) handleSeats(ctx context.Context, w http.ResponseWriter, _ *http.Request, d *contract.DAO) {
	seats, err := loadSeats(ctx, d)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, seats)
}

func (a *api) handleAccount(ctx context.Context, w http.ResponseWriter, r *http.Request, d *contract.DAO) {
	v, err := loadAccount(ctx, d, sdk.Address(r.PathValue("addr")))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *api) handleClaims(_ context.Context, w http.ResponseWriter, r *http.Request, d *contract.DAO) {
	claims, err := a.n.index.Claims(d.Address().String(), r.PathValue("addr"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claims)
}

func (a *api) handleTransfers(_ context.Context, w http.ResponseWriter, r *http.Request, d *contract.DAO) {
	_, limit := pageParams(r)
	transfers, err := a.n.index.Transfers(d.Address().String(), limit)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transfers)
}
