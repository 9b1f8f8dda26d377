// Package app 负责连接服务、协调回合并管理应用程序生命周期。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/purpose168/parley-cn/internal/chat"
	"github.com/purpose168/parley-cn/internal/config"
	"github.com/purpose168/parley-cn/internal/db"
	"github.com/purpose168/parley-cn/internal/imagecache"
	"github.com/purpose168/parley-cn/internal/log"
	"github.com/purpose168/parley-cn/internal/message"
	"github.com/purpose168/parley-cn/internal/persist"
	"github.com/purpose168/parley-cn/internal/provider"
	"github.com/purpose168/parley-cn/internal/stream"
	"github.com/purpose168/parley-cn/internal/turn"
	"golang.org/x/sync/errgroup"
)

type App struct {
	Chats       chat.Service
	Messages    message.Service
	Coordinator *turn.Coordinator
	ImageCache  *imagecache.Cache

	config *config.Config

	snapshotStore  *persist.Store
	snapshotSyncer *persist.Syncer

	eventsCtx    context.Context
	eventsCancel context.CancelFunc
	eventsWG     sync.WaitGroup

	cleanupFuncs []func() error
}

// New 初始化一个新的应用程序实例。
func New(ctx context.Context, conn *sql.DB, cfg *config.Config) (*App, error) {
	q := db.New(conn)
	chats := chat.NewService(q)
	messages := message.NewService(q)

	cache, err := imagecache.New(filepath.Join(cfg.DataDir, "images"))
	if err != nil {
		return nil, fmt.Errorf("初始化图片缓存失败: %w", err)
	}

	var clientOpts []provider.Option
	if cfg.Debug {
		clientOpts = append(clientOpts, provider.WithHTTPClient(log.NewHTTPClient()))
	}
	client := provider.New(cfg.BaseURL, cfg.APIKey, clientOpts...)
	coordinator := turn.NewCoordinator(cfg, chats, messages, stream.NewTable(), cache, turn.NewProvider(client))

	app := &App{
		Chats:       chats,
		Messages:    messages,
		Coordinator: coordinator,
		ImageCache:  cache,
		config:      cfg,

		snapshotStore: persist.NewStore(cfg.DataDir, cfg.FallbackDir),
	}
	app.snapshotSyncer = persist.NewSyncer(cfg.Debounce.Snapshot, app.writeSnapshot)

	app.eventsCtx, app.eventsCancel = context.WithCancel(ctx)
	app.setupEvents()

	app.cleanupFuncs = append(app.cleanupFuncs, conn.Close)
	return app, nil
}

// Config 返回应用程序配置。
func (app *App) Config() *config.Config {
	return app.config
}

// setupEvents 订阅聊天变更，把每次变更折叠成一次延迟的快照写盘
func (app *App) setupEvents() {
	ch := app.Chats.Subscribe(app.eventsCtx)
	app.eventsWG.Add(1)
	go func() {
		defer app.eventsWG.Done()
		for {
			select {
			case <-app.eventsCtx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				app.snapshotSyncer.Schedule()
			}
		}
	}()
}

// writeSnapshot 收集当前状态并写出聊天索引快照
func (app *App) writeSnapshot() error {
	chats, err := app.Chats.List(context.Background())
	if err != nil {
		return fmt.Errorf("收集快照数据失败: %w", err)
	}
	summaries := make([]persist.ChatSummary, len(chats))
	for i, c := range chats {
		summaries[i] = persist.ChatSummary{
			ID:              c.ID,
			Title:           c.Title,
			Model:           c.Model,
			ReasoningEffort: c.ReasoningEffort,
			VoiceMode:       c.VoiceMode,
			HasImages:       c.HasImages,
			UpdatedAt:       c.UpdatedAt,
		}
	}
	return app.snapshotStore.Save(persist.Snapshot{
		Chats:         summaries,
		CurrentChatID: app.Coordinator.ActiveChat(),
		Settings: persist.Settings{
			Model:           app.config.Defaults.Model,
			ReasoningEffort: app.config.Defaults.ReasoningEffort,
			VoiceMode:       app.config.Defaults.VoiceMode,
		},
	})
}

// RestoreSnapshot 启动时读取上次的聊天索引快照
// 没有快照时返回空快照，不算错误
func (app *App) RestoreSnapshot() (persist.Snapshot, error) {
	snapshot, err := app.snapshotStore.Load()
	if err != nil {
		return persist.Snapshot{}, err
	}
	if snapshot.CurrentChatID != "" {
		// 快照里的聊天可能已被其他进程删除，校验后再恢复视图
		if _, err := app.Chats.Get(context.Background(), snapshot.CurrentChatID); err == nil {
			app.Coordinator.SetActiveChat(snapshot.CurrentChatID)
		}
	}
	return snapshot, nil
}

// RunPrompt 以非交互模式执行一个回合，流式输出到给定的写入器
func (app *App) RunPrompt(ctx context.Context, output io.Writer, chatID, prompt string) error {
	slog.Info("以非交互模式运行")

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	events := app.Coordinator.Sessions().Subscribe(subCtx)

	t, err := app.Coordinator.Send(ctx, chatID, prompt)
	if err != nil {
		return err
	}

	// 按会话更新事件增量打印，结束后补齐定稿内容
	var printed int
	for {
		select {
		case <-ctx.Done():
			app.Coordinator.Cancel(t.ChatID)
			return <-t.Done()
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			session := event.Payload
			if session.ChatID != t.ChatID {
				continue
			}
			if len(session.StreamingMessage) > printed {
				fmt.Fprint(output, session.StreamingMessage[printed:])
				printed = len(session.StreamingMessage)
			}
		case err := <-t.Done():
			if err != nil {
				return err
			}
			final, getErr := app.Messages.Get(context.Background(), t.PlaceholderID)
			if getErr == nil {
				text := final.Content().Text
				if len(text) > printed {
					fmt.Fprint(output, text[printed:])
				}
			}
			fmt.Fprintln(output)
			return nil
		}
	}
}

// Shutdown 优雅地终止进行中的回合并冲刷延迟写盘
func (app *App) Shutdown() {
	app.Coordinator.Shutdown()
	if err := app.snapshotSyncer.Close(); err != nil {
		slog.Error("冲刷快照失败", "error", err)
	}
	app.eventsCancel()
	app.eventsWG.Wait()

	var g errgroup.Group
	for _, cleanup := range app.cleanupFuncs {
		g.Go(cleanup)
	}
	if err := g.Wait(); err != nil {
		slog.Error("清理资源失败", "error", err)
	}
}
