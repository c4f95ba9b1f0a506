// Package sdnotify reports service state to systemd (Type=notify) and feeds
// its watchdog. Every call is a no-op when NOTIFY_SOCKET is unset.
package sdnotify

import (
	"context"
	"errors"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"crierd/internal/task"
	logx "crierd/pkg/logx"
)

// HeartbeatName is the task name of the watchdog heartbeat.
const HeartbeatName = "systemd-watchdog"

type Config struct {
	Notify   bool
	Watchdog bool
}

// Notifier sends sd_notify messages.
type Notifier struct {
	cfg Config
	log logx.Logger

	notify          func(unsetEnv bool, state string) (bool, error)
	watchdogEnabled func(unsetEnv bool) (time.Duration, error)
}

type Option func(*Notifier)

// WithTransport replaces the go-systemd calls. Used by tests.
func WithTransport(notify func(bool, string) (bool, error), watchdog func(bool) (time.Duration, error)) Option {
	return func(n *Notifier) {
		if notify != nil {
			n.notify = notify
		}
		if watchdog != nil {
			n.watchdogEnabled = watchdog
		}
	}
}

func New(cfg Config, log logx.Logger, opts ...Option) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	n := &Notifier{
		cfg:             cfg,
		log:             log.With(logx.String("comp", "sdnotify")),
		notify:          daemon.SdNotify,
		watchdogEnabled: daemon.SdWatchdogEnabled,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

func (n *Notifier) send(state string) bool {
	if n == nil || !n.cfg.Notify {
		return false
	}
	ok, err := n.notify(false, state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return false
	}
	if !ok {
		n.log.Trace("sd_notify skipped (not under systemd)", logx.String("state", state))
	}
	return ok
}

func (n *Notifier) Ready() bool    { return n.send(daemon.SdNotifyReady) }
func (n *Notifier) Stopping() bool { return n.send(daemon.SdNotifyStopping) }

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(msg string) bool { return n.send("STATUS=" + msg) }

// Heartbeat returns a task that pings the watchdog at half its timeout, or
// nil when the watchdog is disabled in config or by systemd.
func (n *Notifier) Heartbeat() task.Task {
	if n == nil || !n.cfg.Notify || !n.cfg.Watchdog {
		return nil
	}
	d, err := n.watchdogEnabled(false)
	if err != nil {
		n.log.Warn("watchdog check failed", logx.Err(err))
		return nil
	}
	if d <= 0 {
		n.log.Debug("watchdog not enabled by systemd")
		return nil
	}
	n.log.Info("watchdog heartbeat enabled", logx.Duration("timeout", d), logx.Duration("interval", d/2))
	return &heartbeat{n: n, interval: d / 2}
}

// ErrNotDelivered is returned by the heartbeat when systemd did not accept the ping.
var ErrNotDelivered = errors.New("watchdog ping not delivered")

type heartbeat struct {
	n        *Notifier
	interval time.Duration
}

func (h *heartbeat) Name() string                    { return HeartbeatName }
func (h *heartbeat) Interval() time.Duration         { return h.interval }
func (h *heartbeat) ErrorHandler() task.ErrorHandler { return nil }

func (h *heartbeat) Execute(context.Context) error {
	ok, err := h.n.notify(false, daemon.SdNotifyWatchdog)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotDelivered
	}
	return nil
}
