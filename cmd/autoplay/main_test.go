package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/tetris-engine/api"
	"github.com/wricardo/tetris-engine/game/config"
	"github.com/wricardo/tetris-engine/game/engine"
	"github.com/wricardo/tetris-engine/game/service"
	"github.com/wricardo/tetris-engine/game/session"
)

type discardLogger struct{}

func (discardLogger) Printf(string, ...any) {}

func newTestServer(t *testing.T, withTokens bool) (*httptest.Server, service.GameService) {
	t.Helper()
	configs, err := config.NewManager("../../configs")
	require.NoError(t, err)
	sessions := session.NewManager()
	sessions.SetLogger(discardLogger{})
	gameService := service.NewGameServiceWithLogger(sessions, configs, discardLogger{})

	apiServer := api.NewServer(gameService, nil)
	apiServer.SetLogger(discardLogger{})
	if withTokens {
		tokenizer, err := session.TokenizerConfig{KeyReader: session.SecretKeyReader("autoplay")}.NewTokenizer()
		require.NoError(t, err)
		apiServer.SetTokenizer(tokenizer)
	}

	server := httptest.NewServer(apiServer)
	t.Cleanup(server.Close)
	return server, gameService
}

func TestPlayGame(t *testing.T) {
	server, _ := newTestServer(t, true)
	ctx := context.Background()

	client := NewClient(server.URL + "/")
	info, err := client.CreateSession(ctx, "classic")
	require.NoError(t, err)
	require.NotEmpty(t, info.Token)

	state, err := client.Reset(ctx)
	require.NoError(t, err)

	result, err := PlayGame(ctx, client, state, PlayOptions{MaxPieces: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Pieces)
	assert.Equal(t, 5, result.State.PiecesPlaced)
	assert.False(t, result.State.GameOver)

	current, err := client.GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, result.State.TotalMoves, current.TotalMoves)
}

func TestPlayGameStopsAtGameOver(t *testing.T) {
	server, gameService := newTestServer(t, false)
	ctx := context.Background()

	client := NewClient(server.URL)
	info, err := client.CreateSession(ctx, "classic")
	require.NoError(t, err)

	// Stack pieces without moving them until the spawn area is blocked
	for i := 0; i < 200; i++ {
		res, err := gameService.Act(ctx, info.ID, "drop", false)
		require.NoError(t, err)
		if res.GameState.GameOver {
			break
		}
	}

	state, err := client.GetState(ctx)
	require.NoError(t, err)
	require.True(t, state.GameOver)

	result, err := PlayGame(ctx, client, state, PlayOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Pieces)

	_, err = client.Suggest(ctx)
	assert.ErrorIs(t, err, ErrNoPlacement)
}

func TestClientErrors(t *testing.T) {
	server, _ := newTestServer(t, true)
	ctx := context.Background()

	client := NewClient(server.URL)
	client.Resume("zzzz", "")
	_, err := client.GetState(ctx)
	var apiErr *apiError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)

	owner := NewClient(server.URL)
	info, err := owner.CreateSession(ctx, "")
	require.NoError(t, err)

	stranger := NewClient(server.URL)
	stranger.Resume(info.ID, "")
	_, err = stranger.BulkAct(ctx, []engine.Action{engine.ActionDrop})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	_, err = owner.CreateSession(ctx, "missing")
	assert.Error(t, err)
}

func TestSessionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	_, err := loadSession(path)
	assert.Error(t, err)

	require.NoError(t, saveSession(path, savedSession{ID: "ab12", Token: "tok"}))
	saved, err := loadSession(path)
	require.NoError(t, err)
	assert.Equal(t, "ab12", saved.ID)
	assert.Equal(t, "tok", saved.Token)

	require.NoError(t, saveSession(path, savedSession{}))
	_, err = loadSession(path)
	assert.ErrorContains(t, err, "no session id")
}

func TestRun(t *testing.T) {
	server, gameService := newTestServer(t, true)
	sessionFile := filepath.Join(t.TempDir(), "session.json")
	args := []string{"autoplay", "--url", server.URL, "--config", "sprint", "--session-file", sessionFile, "--max-pieces", "3"}

	require.NoError(t, newCommand().Run(context.Background(), append(args, "--games", "2")))

	saved, err := loadSession(sessionFile)
	require.NoError(t, err)
	require.NotEmpty(t, saved.Token)

	state, err := gameService.GetGameState(context.Background(), saved.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, state.PiecesPlaced, "the second game starts from a reset")

	// A second run keeps playing the saved session
	require.NoError(t, newCommand().Run(context.Background(), args))
	sessions, err := gameService.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}
