package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// Change はデータベースから届いた変更通知を表す。
type Change struct {
	// Channel は通知チャネル名（games_changed等）。
	Channel string
	// ID は変更された行のID。空の場合は全体再読込を意味する。
	ID string
}

// notificationListener はChangeFeedが必要とするpq.Listenerの操作。
type notificationListener interface {
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

// ChangeFeed はLISTEN/NOTIFYによる変更通知の購読を提供する。
// 接続断の際はlib/pqが自動再接続する。再接続直後は取りこぼしが
// あり得るため、受信側は通知を「再読込の契機」としてのみ扱うこと。
type ChangeFeed struct {
	listener notificationListener
	logger   *slog.Logger
	out      chan Change
}

// NewChangeFeed は指定チャネル群を購読するChangeFeedを生成する。
func NewChangeFeed(databaseURL string, channels []string, logger *slog.Logger) (*ChangeFeed, error) {
	reportErr := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("change feed listener event",
				slog.Int("event", int(ev)),
				slog.String("error", err.Error()),
			)
		}
	}

	listener := pq.NewListener(databaseURL, 10*time.Second, time.Minute, reportErr)
	for _, ch := range channels {
		if err := listener.Listen(ch); err != nil {
			listener.Close()
			return nil, fmt.Errorf("failed to listen on channel %s: %w", ch, err)
		}
	}

	return &ChangeFeed{
		listener: listener,
		logger:   logger,
		out:      make(chan Change, 64),
	}, nil
}

// Changes は変更通知の受信チャネルを返す。
func (f *ChangeFeed) Changes() <-chan Change {
	return f.out
}

// Run は通知の転送ループを実行する。ctxのキャンセルで停止する。
// 90秒間通知がない場合はPingで接続を確認する。
// 受信側が追いつかずバッファが溢れた場合、個別通知は破棄せず
// 全体再読込1件（空のChange）に畳み込む。再読込待ちの間に届いた
// 通知は全体再読込に包含されるため転送しない。
func (f *ChangeFeed) Run(ctx context.Context) {
	defer close(f.out)
	defer f.listener.Close()

	notify := f.listener.NotificationChannel()
	pendingReload := false

	for {
		if pendingReload {
			select {
			case <-ctx.Done():
				return
			case f.out <- Change{}:
				pendingReload = false
			case <-notify:
				// 全体再読込に包含される
			case <-time.After(90 * time.Second):
				f.pingListener()
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case n := <-notify:
			if n == nil {
				// 再接続。取りこぼしがあり得るため全体再読込を促す。
				pendingReload = true
				continue
			}
			select {
			case f.out <- Change{Channel: n.Channel, ID: n.Extra}:
			default:
				f.logger.Warn("change feed buffer full, coalescing into full reload",
					slog.String("channel", n.Channel),
				)
				pendingReload = true
			}
		case <-time.After(90 * time.Second):
			f.pingListener()
		}
	}
}

func (f *ChangeFeed) pingListener() {
	if err := f.listener.Ping(); err != nil {
		f.logger.Warn("change feed ping failed", slog.String("error", err.Error()))
	}
}
