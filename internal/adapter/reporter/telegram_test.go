package reporter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/semmidev/alipan-runner/internal/config"
	"github.com/semmidev/alipan-runner/internal/domain"
	. "github.com/smartystreets/goconvey/convey"
)

// botAPI fakes the two Bot API methods the reporter touches.
type botAPI struct {
	*httptest.Server
	sent    []map[string]string
	sendErr bool
}

func newBotAPI() *botAPI {
	api := &botAPI{}
	api.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")

		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"runner","username":"runner_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			if api.sendErr {
				_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
				return
			}
			api.sent = append(api.sent, map[string]string{
				"chat_id": r.PostForm.Get("chat_id"),
				"text":    r.PostForm.Get("text"),
			})
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	return api
}

func (a *botAPI) endpoint() string {
	return a.URL + "/bot%s/%s"
}

func sampleSummary() domain.IterationSummary {
	return domain.IterationSummary{
		Iteration:    3,
		DriveID:      "drive-1",
		Capacity:     domain.Capacity{TotalSize: 10 << 30, UsedSize: 4 << 30},
		Listed:       5,
		RemovedBytes: 3072,
		Failed:       1,
	}
}

func TestFormatSummary(t *testing.T) {
	Convey("Given an iteration summary", t, func() {
		summary := sampleSummary()

		Convey("It should describe the pass", func() {
			text := FormatSummary(summary)

			So(text, ShouldStartWith, "🧹 Drive cleaned")
			So(text, ShouldContainSubstring, "Iteration: 3")
			So(text, ShouldContainSubstring, "Drive: drive-1")
			So(text, ShouldContainSubstring, "Files: 5 (1 failed)")
			So(text, ShouldContainSubstring, "Reclaimed: 3.0 KiB")
			So(text, ShouldContainSubstring, "Free: 6.0 GiB of 10 GiB")
		})

		Convey("A dry run should say so and omit failures when there are none", func() {
			summary.DryRun = true
			summary.Failed = 0

			text := FormatSummary(summary)

			So(text, ShouldStartWith, "🔎 Drive cleanup (dry run)")
			So(text, ShouldContainSubstring, "Files: 5\n")
		})
	})
}

func TestTelegram(t *testing.T) {
	Convey("Given a Telegram reporter", t, func() {
		api := newBotAPI()
		defer api.Close()

		reporter, err := NewTelegram(&config.TelegramConfig{BotToken: "123:abc", ChatID: 42, APIEndpoint: api.endpoint()})
		So(err, ShouldBeNil)

		Convey("When reporting a summary", func() {
			err := reporter.Report(context.Background(), sampleSummary())

			Convey("It should send one message to the configured chat", func() {
				So(err, ShouldBeNil)
				So(len(api.sent), ShouldEqual, 1)
				So(api.sent[0]["chat_id"], ShouldEqual, "42")
				So(api.sent[0]["text"], ShouldEqual, FormatSummary(sampleSummary()))
			})
		})

		Convey("When the Bot API rejects the message", func() {
			api.sendErr = true

			err := reporter.Report(context.Background(), sampleSummary())

			Convey("It should return a wrapped error", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "failed to send telegram report")
			})
		})
	})

	Convey("Given a token the Bot API rejects", t, func() {
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
		}))
		defer api.Close()

		_, err := NewTelegram(&config.TelegramConfig{BotToken: "bad", ChatID: 42, APIEndpoint: api.URL + "/bot%s/%s"})

		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "failed to create telegram bot")
	})
}
