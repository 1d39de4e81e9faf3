package supervisor

import (
	"context"

	"github.com/opencode-ai/opencode-remote/internal/config"
	"github.com/opencode-ai/opencode-remote/internal/event"
	"github.com/opencode-ai/opencode-remote/internal/logging"
	"github.com/opencode-ai/opencode-remote/pkg/types"
)

// run is the supervised task for one server. It loops preload -> stream
// -> backoff until its context is cancelled by Disconnect or Close.
func (s *Supervisor) run(ctx context.Context, cfg config.ServerConfig, conn Conn, done chan struct{}) {
	defer close(done)

	log := logging.With().Str("serverID", cfg.ID).Logger()
	bo := newReconnectBackOff(s.settings)

	for {
		if ctx.Err() != nil {
			return
		}

		s.preload(ctx, cfg, conn)
		if ctx.Err() != nil {
			return
		}

		events, errs := conn.OpenStream(ctx)
		streamed := false
		for ev := range events {
			if !streamed {
				streamed = true
				// The registry flips before the event is visible to
				// consumers, so observers never see session traffic
				// from a server still listed as connecting.
				s.setConnected(cfg.ID, true)
				bo.Reset()
				log.Info().Msg("stream established")
			}
			s.store.ProcessEvent(ev)
			s.dispatch(ev)
		}
		if err := <-errs; err != nil {
			log.Warn().Err(err).Msg("stream failed")
		} else {
			log.Info().Msg("stream ended")
		}

		if ctx.Err() != nil {
			return
		}
		if !s.setConnected(cfg.ID, false) {
			// Untracked mid-loop: a concurrent Disconnect won.
			return
		}

		delay := bo.NextBackOff()
		log.Info().Dur("delay", delay).Msg("reconnecting")
		if err := s.sleep(ctx, delay); err != nil {
			return
		}
		if !s.tracked(cfg.ID) {
			return
		}
	}
}

// preload seeds the session store over REST before streaming. Sessions are
// listed per project worktree so multi-project servers are fully covered;
// every failure here is logged and swallowed, the stream is authoritative.
func (s *Supervisor) preload(ctx context.Context, cfg config.ServerConfig, conn Conn) {
	log := logging.With().Str("serverID", cfg.ID).Logger()

	var projects []types.Project
	err := retryREST(ctx, func() error {
		var err error
		projects, err = conn.ListProjects(ctx)
		return err
	})
	if err != nil {
		log.Debug().Err(err).Msg("project preload failed")
	}

	directories := make([]string, 0, len(projects))
	for _, p := range projects {
		if p.Worktree != "" {
			directories = append(directories, p.Worktree)
		}
	}
	if len(directories) == 0 {
		directories = []string{""}
	}

	loaded := 0
	for _, dir := range directories {
		var sessions []types.Session
		err := retryREST(ctx, func() error {
			var err error
			sessions, err = conn.ListSessions(ctx, dir)
			return err
		})
		if err != nil {
			log.Debug().Err(err).Str("directory", dir).Msg("session preload failed")
			continue
		}
		s.store.SetSessions(cfg.ID, sessions)
		loaded += len(sessions)
	}
	log.Debug().Int("sessions", loaded).Msg("preload complete")
}

// dispatch turns noteworthy events into user notifications. It runs after
// the store has applied the event so parent lookups see current state.
// Child sessions (subagents) never notify, and the settings toggle is
// consulted per event.
func (s *Supervisor) dispatch(ev event.Event) {
	kind, body, ok := notificationFor(ev)
	if !ok {
		return
	}
	sessionID := ev.SessionID()
	if sessionID != "" && s.store.IsChild(ev.ServerID, sessionID) {
		return
	}
	if !s.settings.NotificationsEnabled() {
		return
	}

	title := "Session"
	if sess, ok := s.store.Get(ev.ServerID, sessionID); ok && sess.Title != "" {
		title = sess.Title
	}
	s.notifier.Notify(event.NotificationData{
		ServerID:  ev.ServerID,
		SessionID: sessionID,
		Kind:      kind,
		Title:     title,
		Body:      body,
	})
}

// notificationFor maps an event to a notification kind and body. Events
// outside the four alert-worthy kinds produce no notification.
func notificationFor(ev event.Event) (kind, body string, ok bool) {
	switch data := ev.Data.(type) {
	case event.SessionIdleData:
		return "idle", "finished responding", true
	case event.SessionErrorData:
		return "error", data.Error, true
	case event.PermissionRequestedData:
		body := data.Permission.Title
		if body == "" {
			body = data.Permission.Type
		}
		return "permission", body, true
	case event.QuestionAskedData:
		body := ""
		if len(data.Questions) > 0 {
			body = data.Questions[0].Text
		}
		return "question", body, true
	}
	return "", "", false
}
