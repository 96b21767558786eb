package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/semmidev/alipan-runner/internal/config"
	"github.com/semmidev/alipan-runner/internal/domain"
	"github.com/semmidev/alipan-runner/internal/usecase"
	. "github.com/smartystreets/goconvey/convey"
)

type memLogger struct {
	lines []string
}

func (l *memLogger) Debugf(template string, args ...interface{}) { l.add("DEBUG", template, args) }
func (l *memLogger) Infof(template string, args ...interface{})  { l.add("INFO", template, args) }
func (l *memLogger) Warnf(template string, args ...interface{})  { l.add("WARN", template, args) }
func (l *memLogger) Errorf(template string, args ...interface{}) { l.add("ERROR", template, args) }

func (l *memLogger) add(level, template string, args []interface{}) {
	l.lines = append(l.lines, level+" "+fmt.Sprintf(template, args...))
}

// provider fakes the token, user and file endpoints on one server.
type provider struct {
	*httptest.Server
	mu      sync.Mutex
	paths   []string
	deleted []string
	items   string
}

func newProvider() *provider {
	p := &provider{items: `[{"file_id":"f1","name":"a.mkv","type":"file","size":1024},{"file_id":"f2","name":"b.mkv","type":"file","size":2048}]`}
	p.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.paths = append(p.paths, r.URL.Path)

		if r.URL.Path != "/v2/account/token" && r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		switch r.URL.Path {
		case "/v2/account/token":
			_, _ = w.Write([]byte(`{"access_token":"access-1","refresh_token":"refresh-2","expires_in":7200}`))
		case "/v2/user/get":
			_, _ = w.Write([]byte(`{"default_drive_id":"d-1","resource_drive_id":"d-2"}`))
		case "/adrive/v1/user/driveCapacityDetails":
			_, _ = w.Write([]byte(`{"drive_total_size":1073741824,"drive_used_size":3072}`))
		case "/adrive/v2/file/list":
			_, _ = w.Write([]byte(`{"items":` + p.items + `}`))
		case "/adrive/v1/file/get_path":
			_, _ = w.Write([]byte(`{"items":[]}`))
		case "/v3/batch":
			var req struct {
				Requests []struct {
					ID string `json:"id"`
				} `json:"requests"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			id := req.Requests[0].ID
			p.deleted = append(p.deleted, id)
			_, _ = fmt.Fprintf(w, `{"responses":[{"id":%q,"status":204}]}`, id)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	return p
}

func testConfig(p *provider) *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "alipan-runner", LogLevel: "error"},
		Drive: config.DriveConfig{
			RefreshToken: "refresh-1",
			FolderID:     "trash",
			Endpoint:     p.URL,
			TokenURL:     p.URL + "/v2/account/token",
			UserURL:      p.URL + "/v2/user/get",
			ProxyURL:     config.DefaultProxyURL,
		},
	}
}

func TestApp(t *testing.T) {
	Convey("Given the runner wired against a fake provider", t, func() {
		p := newProvider()
		defer p.Close()
		cfg := testConfig(p)

		Convey("A one-shot run should delete every listed file", func() {
			application, err := New(cfg)
			So(err, ShouldBeNil)
			defer application.Shutdown()

			err = application.Run(context.Background())

			So(err, ShouldBeNil)
			So(p.deleted, ShouldResemble, []string{"f1", "f2"})
			So(p.paths[0], ShouldEqual, "/v2/account/token")
			So(p.paths[1], ShouldEqual, "/v2/user/get")
		})

		Convey("A dry run should list but never delete", func() {
			cfg.Runner.DryRun = true
			application, err := New(cfg)
			So(err, ShouldBeNil)
			defer application.Shutdown()

			So(application.Run(context.Background()), ShouldBeNil)
			So(len(p.deleted), ShouldEqual, 0)
		})

		Convey("An interval run should stop once the folder is empty", func() {
			cfg.Runner.Interval = 1
			p.items = `[]`
			application, err := New(cfg)
			So(err, ShouldBeNil)
			defer application.Shutdown()

			done := make(chan error, 1)
			go func() { done <- application.Run(context.Background()) }()

			select {
			case err := <-done:
				So(err, ShouldBeNil)
			case <-time.After(5 * time.Second):
				So("run did not stop", ShouldBeEmpty)
			}
		})

		Convey("A malformed endpoint should fail construction", func() {
			cfg.Drive.Endpoint = "not a url"

			_, err := New(cfg)

			So(err, ShouldNotBeNil)
			So(errors.Is(err, domain.ErrInvalidEndpoint), ShouldBeTrue)
		})
	})
}

func TestLogExit(t *testing.T) {
	Convey("Given each way the loop can stop", t, func() {
		log := &memLogger{}

		Convey("An authorization failure should point at a new refresh token", func() {
			logExit(log, usecase.Exit{Reason: usecase.ExitFatal, Fatal: usecase.FatalUnauthorized, Err: domain.ErrUnauthorized})
			So(log.lines[0], ShouldEqual, "ERROR Invalid refresh token, try to fetch a new one: "+refreshTokenHelpURL)
		})

		Convey("A response failure should log the raw message", func() {
			err := &domain.ResponseError{Kind: domain.KindOther, StatusCode: 500, Endpoint: "/v3/batch", Body: []byte(`{"code":"InternalError"}`)}
			logExit(log, usecase.Exit{Reason: usecase.ExitFatal, Fatal: usecase.FatalResponse, Err: err})
			So(log.lines[0], ShouldEqual, `ERROR Unknown response error: /v3/batch: status 500: {"code":"InternalError"}`)
		})

		Convey("An endpoint failure should describe the expected shape", func() {
			err := &domain.EndpointError{URL: "nomad", Err: errors.New("missing host")}
			logExit(log, usecase.Exit{Reason: usecase.ExitFatal, Fatal: usecase.FatalEndpoint, Err: err})
			So(log.lines[0], ShouldStartWith, `ERROR Invalid endpoint: "nomad".`)
			So(log.lines[0], ShouldContainSubstring, "http(s)://127.0.0.1:9091")
		})

		Convey("A signal should be named", func() {
			logExit(log, usecase.Exit{Reason: usecase.ExitSignal, Signal: syscall.SIGTERM})
			So(log.lines[0], ShouldEqual, "ERROR Received signal terminated, exiting runner...")
		})

		Convey("A plain cancellation should still be logged", func() {
			logExit(log, usecase.Exit{Reason: usecase.ExitSignal})
			So(log.lines[0], ShouldEqual, "ERROR Run cancelled, exiting runner...")
		})

		Convey("Normal completions should log at info", func() {
			logExit(log, usecase.Exit{Reason: usecase.ExitEmptyListing, Iterations: 4})
			logExit(log, usecase.Exit{Reason: usecase.ExitOneShotComplete, Iterations: 1})
			So(log.lines, ShouldResemble, []string{
				"INFO Folder is empty, runner finished after 4 iteration(s)",
				"INFO Oneshot run finished",
			})
		})
	})
}

func TestEndpointHint(t *testing.T) {
	Convey("EndpointHint should only rewrite endpoint errors", t, func() {
		So(EndpointHint(errors.New("other")), ShouldEqual, "other")
		So(strings.HasPrefix(EndpointHint(fmt.Errorf("load: %w", &domain.EndpointError{URL: "x", Err: errors.New("bad")})), "Invalid endpoint"), ShouldBeTrue)
	})
}

func TestNotifyContext(t *testing.T) {
	Convey("Given a signal-aware context", t, func() {
		released := make(chan struct{}, 2)
		stopNotify = func(c chan<- os.Signal) {
			signal.Stop(c)
			released <- struct{}{}
		}
		defer func() { stopNotify = signal.Stop }()

		ctx, stop := NotifyContext(context.Background())
		defer stop()

		Convey("SIGTERM should cancel it with the signal as the cause", func() {
			So(syscall.Kill(syscall.Getpid(), syscall.SIGTERM), ShouldBeNil)

			select {
			case <-ctx.Done():
			case <-time.After(2 * time.Second):
			}

			var sigErr *usecase.SignalError
			So(errors.As(context.Cause(ctx), &sigErr), ShouldBeTrue)
			So(sigErr.Signal, ShouldEqual, syscall.SIGTERM)
		})

		Convey("The first signal should hand later ones back to the default handler", func() {
			So(syscall.Kill(syscall.Getpid(), syscall.SIGTERM), ShouldBeNil)

			select {
			case <-released:
			case <-time.After(2 * time.Second):
				So("notification was never stopped", ShouldBeEmpty)
			}
			So(ctx.Err(), ShouldNotBeNil)
		})

		Convey("stop should cancel it without a signal", func() {
			stop()

			<-ctx.Done()
			So(errors.Is(context.Cause(ctx), context.Canceled), ShouldBeTrue)
		})
	})
}
