// Package supportchat serves a two-role support chat as Google Cloud
// Functions. Users talk to support in a single conversation keyed by their
// user id; admins see and answer every conversation.
package supportchat

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/klipach/supportchat/config"
	"github.com/klipach/supportchat/log"
)

const gcloudFuncSourceDir = "serverless_function_source_code"

var (
	serverOnce sync.Once
	server     *Server
	serverErr  error
)

func init() {
	functions.HTTP("Session", handle((*Server).Session))
	functions.HTTP("Conversation", handle((*Server).Conversation))
	functions.HTTP("Send", handle((*Server).Send))
	functions.HTTP("Subscribe", handle((*Server).Subscribe))
	functions.HTTP("Conversations", handle((*Server).Conversations))
	functions.HTTP("Transcript", handle((*Server).Transcript))
	functions.HTTP("Suggest", handle((*Server).Suggest))
	functions.HTTP("SignOut", handle((*Server).SignOut))
	fixDir()
}

// in GCP Functions, source code is placed in a directory named "serverless_function_source_code"
// need to change the dir to get access to template file
func fixDir() {
	fileInfo, err := os.Stat(gcloudFuncSourceDir)
	if err == nil && fileInfo.IsDir() {
		_ = os.Chdir(gcloudFuncSourceDir)
	}
}

// defaultServer is built on first use and shared by all function instances
// in the process.
func defaultServer() (*Server, error) {
	serverOnce.Do(func() {
		ctx := context.Background()
		cfg, err := config.FromEnv()
		if err != nil {
			serverErr = err
			return
		}
		server, _, serverErr = Setup(ctx, cfg)
	})
	return server, serverErr
}

func handle(h func(*Server, http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := defaultServer()
		if err != nil {
			log.LoggerFromContext(r.Context()).Error("error while initializing server", slog.String(log.ErrorMsgLogField, err.Error()))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		h(s, w, r)
	}
}
