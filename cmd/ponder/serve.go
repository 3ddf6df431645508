package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-go-golems/ponder/pkg/conversation"
	"github.com/go-go-golems/ponder/pkg/events"
	"github.com/go-go-golems/ponder/pkg/inference/engine"
	"github.com/go-go-golems/ponder/pkg/inference/engine/factory"
	"github.com/go-go-golems/ponder/pkg/metrics"
	"github.com/go-go-golems/ponder/pkg/prompt"
	"github.com/go-go-golems/ponder/pkg/reasoning/chain"
	"github.com/go-go-golems/ponder/pkg/reasoning/schema"
	"github.com/go-go-golems/ponder/pkg/settings"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const maxRequestBytes = 1 << 20

func newServeCommand() *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve reasoning runs over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			eng, err := factory.NewEngineFromSettings(s)
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			handler, err := newServer(eng, s.Run, reg)
			if err != nil {
				return err
			}
			return listenAndServe(cmd.Context(), address, handler)
		},
	}

	addSettingsFlags(cmd)
	cmd.Flags().StringVar(&address, "address", ":8080", "Address to listen on")
	return cmd
}

func listenAndServe(ctx context.Context, address string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info().Str("address", address).Msg("Listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}

type server struct {
	eng       engine.Engine
	run       settings.RunConfiguration
	collector *metrics.Collector
}

type reasonRequest struct {
	Question     string `json:"question"`
	MinSteps     *int   `json:"min_steps,omitempty"`
	MaxSteps     *int   `json:"max_steps,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

type stepView struct {
	Step           int    `json:"step"`
	Variant        string `json:"variant"`
	Title          string `json:"title"`
	Reasoning      string `json:"reasoning"`
	DeclaredAction string `json:"declared_action,omitempty"`
	Decision       string `json:"decision"`
}

type reasonResponse struct {
	Answer     string                    `json:"answer,omitempty"`
	Steps      []stepView                `json:"steps"`
	Transcript conversation.Conversation `json:"transcript"`
	Error      string                    `json:"error,omitempty"`
}

// newServer exposes POST /v1/reason, GET /metrics and GET /healthz.
func newServer(eng engine.Engine, run settings.RunConfiguration, reg *prometheus.Registry) (http.Handler, error) {
	if err := run.Validate(); err != nil {
		return nil, err
	}
	s := &server{
		eng:       eng,
		run:       run.Clone(),
		collector: metrics.NewCollector(reg),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Route("/v1", func(r chi.Router) {
		r.Post("/reason", s.handleReason)
	})

	return r, nil
}

func (s *server) handleReason(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	var req reasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		respondError(w, "question is required", http.StatusBadRequest)
		return
	}

	// sinks are called synchronously from the run
	steps := []stepView{}
	recorder := events.SinkFunc(func(e events.Event) error {
		step, ok := e.(*events.EventReasoningStep)
		if !ok {
			return nil
		}
		steps = append(steps, stepView{
			Step:           step.Metadata().Step,
			Variant:        step.Metadata().Variant,
			Title:          step.Title,
			Reasoning:      step.Reasoning,
			DeclaredAction: step.DeclaredAction,
			Decision:       step.Decision,
		})
		return nil
	})

	opts := []chain.Option{
		chain.WithRunConfiguration(s.run),
		chain.WithEventSinks(s.collector, recorder),
	}
	if req.MinSteps != nil {
		opts = append(opts, chain.WithMinSteps(*req.MinSteps))
	}
	if req.MaxSteps != nil {
		opts = append(opts, chain.WithMaxSteps(*req.MaxSteps))
	}
	if req.SystemPrompt != "" {
		// request prompts are never executed as templates
		opts = append(opts,
			chain.WithSystemPrompt(req.SystemPrompt),
			chain.WithRenderer(prompt.LiteralRenderer{}),
		)
	}

	c, err := chain.New(s.eng, opts...)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	transcript, err := c.Run(r.Context(), req.Question)
	resp := reasonResponse{
		Steps:      steps,
		Transcript: transcript,
	}
	if err != nil {
		log.Warn().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("Reasoning run failed")
		resp.Error = err.Error()
		status := http.StatusBadGateway
		if errors.Is(err, schema.ErrMalformedOutput) {
			status = http.StatusUnprocessableEntity
		}
		respondJSON(w, resp, status)
		return
	}

	resp.Answer = transcript.LastMessage().Text
	respondJSON(w, resp, http.StatusOK)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("Could not write response")
	}
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}
