package handler

import (
	"github.com/brainsta/reels/internal/appconfig"
	"github.com/brainsta/reels/internal/auth"
	"github.com/brainsta/reels/internal/category"
	"github.com/brainsta/reels/internal/feed"
	"github.com/brainsta/reels/internal/game"
	"github.com/brainsta/reels/internal/interaction"
	"github.com/brainsta/reels/internal/user"
)

// ドメインサービスがハンドラーの要求するインターフェースを満たすことを
// コンパイル時に保証する。シグネチャを揃えてあるためアダプタは不要。

var _ AuthServiceInterface = (*auth.Service)(nil)
var _ FeedServiceInterface = (*feed.Service)(nil)
var _ GameServiceInterface = (*game.Service)(nil)
var _ GameSearcherInterface = (*game.Service)(nil)
var _ InteractionServiceInterface = (*interaction.Service)(nil)
var _ CategoryServiceInterface = (*category.Service)(nil)
var _ AppConfigServiceInterface = (*appconfig.Service)(nil)
var _ UserServiceInterface = (*user.Service)(nil)
var _ UserGetterInterface = (*user.Service)(nil)
