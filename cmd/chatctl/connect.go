package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/chat-realtime/internal/connection"
	"github.com/rickgao/chat-realtime/internal/metrics"
	"github.com/rickgao/chat-realtime/internal/protocol"
)

var errQuit = errors.New("quit")

func runConnect(cmd *cobra.Command, opts *globalOptions, session sessionFlags, convs []string, to, metricsAddr string) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}
	tokens, err := tokenSource(cfg, session)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := &printer{w: cmd.OutOrStdout()}
	mgrOpts := []connection.Option{connection.WithLogger(logger)}
	var metricsServer *http.Server
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		mgrOpts = append(mgrOpts, connection.WithMetrics(metrics.NewClient(reg)))
		metricsServer = &http.Server{
			Addr:              metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	mgr := connection.NewManager(cfg.ConnectionConfig(), tokens, mgrOpts...)

	// ended receives why the session stopped on its own; errQuit is a clean end.
	ended := make(chan error, 1)
	unsubscribe := mgr.Subscribe(func(ev connection.Event) {
		out.event(ev)
		if ev.Type != connection.EventStateChanged {
			return
		}
		var reason error
		switch {
		case ev.To == connection.StateClosed:
			reason = ev.Err
		case ev.To == connection.StateDisconnected && errors.Is(ev.Err, connection.ErrNoCredential):
			reason = ev.Err
		case ev.To == connection.StateDisconnected && ev.Err != nil:
			// relay closed the session cleanly
			reason = errQuit
		default:
			return
		}
		select {
		case ended <- reason:
		default:
		}
	})
	defer unsubscribe()

	for _, id := range convs {
		mgr.JoinConversation(id)
	}
	if to == "" && len(convs) > 0 {
		to = convs[len(convs)-1]
	}

	logger.Info("connecting", "url", cfg.Client.URL, "token_source", describeSource(session, cfg))
	if err := mgr.Connect(ctx); err != nil {
		if errors.Is(err, connection.ErrNoCredential) {
			return fmt.Errorf("no session token: pass --token, --user or set client.token_file: %w", err)
		}
		logger.Warn("initial connect failed, retrying in background", "error", err)
	}

	r := &repl{mgr: mgr, out: out, active: to}
	lines := readLines(cmd.InOrStdin())

	g, gctx := errgroup.WithContext(ctx)
	if metricsServer != nil {
		g.Go(func() error {
			logger.Info("serving client metrics", "addr", metricsAddr)
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case err := <-ended:
			return err
		}
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					// stdin closed; keep streaming until interrupted
					lines = nil
					continue
				}
				if err := r.handle(line); err != nil {
					return err
				}
			}
		}
	})

	err = g.Wait()
	mgr.Disconnect()

	stats := mgr.Stats()
	logger.Info("session ended",
		"messages", stats.Messages,
		"frames_dropped", stats.FramesDropped,
	)
	if errors.Is(err, errQuit) {
		return nil
	}
	return err
}

// readLines streams stdin lines until EOF. The goroutine is not cancellable
// and ends with the process.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// repl interprets stdin lines against a Manager.
type repl struct {
	mgr    *connection.Manager
	out    *printer
	active string
}

func (r *repl) handle(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	if !strings.HasPrefix(line, "/") {
		if r.active == "" {
			r.out.printf("! no active conversation, use /join <id>\n")
			return nil
		}
		if _, err := r.mgr.SendChatMessage(line, r.active); err != nil {
			r.out.printf("! not sent: %v\n", err)
		}
		return nil
	}

	verb, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch verb {
	case "join":
		if arg == "" {
			r.out.printf("! usage: /join <id>\n")
			return nil
		}
		r.mgr.JoinConversation(arg)
		r.active = arg
	case "leave":
		if arg == "" {
			arg = r.active
		}
		r.mgr.LeaveConversation(arg)
		if arg == r.active {
			r.active = ""
		}
	case "to":
		r.active = arg
	case "typing":
		if err := r.mgr.SetTyping(r.active, true); err != nil {
			r.out.printf("! typing: %v\n", err)
		}
	case "stats":
		s := r.mgr.Stats()
		r.out.printf("state=%s attempt=%d conversations=%v messages=%d dropped=%d\n",
			s.State, s.Attempt, s.Conversations, s.Messages, s.FramesDropped)
	case "quit", "exit":
		return errQuit
	default:
		r.out.printf("! unknown command /%s\n", verb)
	}
	return nil
}

// printer serializes writes from the observer and the input loop.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) event(ev connection.Event) {
	switch ev.Type {
	case connection.EventStateChanged:
		switch {
		case ev.To == connection.StateReconnecting:
			p.printf("* %s (retry in %s): %v\n", ev.To, ev.Delay.Round(time.Millisecond), ev.Err)
		case ev.Err != nil:
			p.printf("* %s: %v\n", ev.To, ev.Err)
		default:
			p.printf("* %s\n", ev.To)
		}
	case connection.EventMessage:
		p.printf("%s\n", formatMessage(ev.Message))
	}
}

func formatMessage(m connection.InboundMessage) string {
	ts := m.Timestamp.Local().Format(time.TimeOnly)
	switch m.Kind {
	case connection.KindChat:
		return fmt.Sprintf("%s [%s] %s: %s", ts, m.ConversationID, m.SenderID, m.Content)
	case connection.KindPresence:
		switch m.Status {
		case protocol.StatusStarted:
			return fmt.Sprintf("%s [%s] %s is typing", ts, m.ConversationID, m.SenderID)
		case protocol.StatusStopped:
			return fmt.Sprintf("%s [%s] %s stopped typing", ts, m.ConversationID, m.SenderID)
		default:
			return fmt.Sprintf("%s [%s] %s %s", ts, m.ConversationID, m.SenderID, m.Status)
		}
	default:
		return fmt.Sprintf("%s [%s] (%s) %s", ts, m.ConversationID, m.Kind, m.Content)
	}
}

