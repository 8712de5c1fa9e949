// Package mention finds @username tokens in user content, renders them as
// links and turns resolved ones into mention rows and notifications.
package mention

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"regexp"

	"bitboard/internal/middleware"
	"bitboard/internal/models"
	"bitboard/internal/observability"
)

var pattern = regexp.MustCompile(`@(\w+)`)

const (
	previewLen     = 100
	fallbackAuthor = "Someone"
)

// Extract returns the unique usernames mentioned in text, in first-seen order.
func Extract(text string) []string {
	matches := pattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}

// Highlight rewrites every @name as a markdown link to hrefFor(name).
func Highlight(text string, hrefFor func(string) string) string {
	return pattern.ReplaceAllStringFunc(text, func(tok string) string {
		return fmt.Sprintf("[%s](%s)", tok, hrefFor(tok[1:]))
	})
}

// HighlightHTML escapes text and wraps every @name in an anchor.
func HighlightHTML(text string, hrefFor func(string) string) string {
	escaped := html.EscapeString(text)
	return pattern.ReplaceAllStringFunc(escaped, func(tok string) string {
		return fmt.Sprintf(`<a href="%s" class="mention">%s</a>`, html.EscapeString(hrefFor(tok[1:])), tok)
	})
}

// Preview truncates content for notification messages.
func Preview(content string) string {
	r := []rune(content)
	if len(r) <= previewLen {
		return content
	}
	return string(r[:previewLen]) + "..."
}

// Users resolves usernames to accounts.
type Users interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	FindByUsernames(ctx context.Context, usernames []string) ([]models.User, error)
}

// Store persists mention rows.
type Store interface {
	CreateMention(ctx context.Context, m *models.Mention) error
}

// Threads maps posts and comments to their thread.
type Threads interface {
	ThreadIDFor(ctx context.Context, postID uint) (uint, error)
}

// Comments maps comments to their post.
type Comments interface {
	PostIDFor(ctx context.Context, commentID uint) (uint, error)
}

// Notifier creates notifications.
type Notifier interface {
	Create(ctx context.Context, p models.CreateNotificationParams) (*models.Notification, error)
}

// Processor records mentions for newly written content.
type Processor struct {
	users    Users
	store    Store
	posts    Threads
	comments Comments
	notifier Notifier
}

// NewProcessor wires a Processor.
func NewProcessor(users Users, store Store, posts Threads, comments Comments, notifier Notifier) *Processor {
	return &Processor{users: users, store: store, posts: posts, comments: comments, notifier: notifier}
}

// Process extracts mentions from content written by authorID on a post or a
// comment, stores one mention row per resolved user and notifies each of
// them. Unknown names and self-mentions are skipped; mention row and
// notification failures are logged, never returned. Notifications for
// anonymous content name no author. It returns the ids of the users that
// were resolved.
func (p *Processor) Process(ctx context.Context, content string, authorID uint, anonymous bool, postID, commentID *uint) ([]uint, error) {
	names := Extract(content)
	if len(names) == 0 {
		return nil, nil
	}

	users, err := p.users.FindByUsernames(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("resolve mentions: %w", err)
	}
	observability.MentionsResolved.WithLabelValues("unknown").Add(float64(len(names) - len(users)))

	targets := make([]uint, 0, len(users))
	for _, u := range users {
		if u.ID == authorID {
			observability.MentionsResolved.WithLabelValues("self").Inc()
			continue
		}
		observability.MentionsResolved.WithLabelValues("resolved").Inc()
		targets = append(targets, u.ID)

		m := &models.Mention{MentionedUserID: u.ID, MentioningUserID: authorID, PostID: postID, CommentID: commentID}
		if err := p.store.CreateMention(ctx, m); err != nil {
			middleware.Logger.WarnContext(ctx, "mention insert failed",
				slog.Uint64("mentioned_user_id", uint64(u.ID)),
				slog.String("error", err.Error()),
			)
		}
	}
	if len(targets) == 0 {
		return targets, nil
	}

	author := fallbackAuthor
	var from *uint
	if !anonymous {
		if a, err := p.users.GetByID(ctx, authorID); err == nil && a != nil && a.Username != "" {
			author = a.Username
		}
		from = &authorID
	}
	threadID := p.resolveThread(ctx, postID, commentID)

	for _, id := range targets {
		_, err := p.notifier.Create(ctx, models.CreateNotificationParams{
			UserID:     id,
			Type:       models.NotificationMention,
			Title:      author + " mentioned you",
			Message:    fmt.Sprintf(`%s mentioned you: "%s"`, author, Preview(content)),
			PostID:     postID,
			CommentID:  commentID,
			ThreadID:   threadID,
			FromUserID: from,
			Data:       map[string]interface{}{"username": author},
		})
		if err != nil {
			middleware.Logger.WarnContext(ctx, "mention notification failed",
				slog.Uint64("user_id", uint64(id)),
				slog.String("error", err.Error()),
			)
		}
	}
	return targets, nil
}

func (p *Processor) resolveThread(ctx context.Context, postID, commentID *uint) *uint {
	pid := postID
	if pid == nil && commentID != nil {
		id, err := p.comments.PostIDFor(ctx, *commentID)
		if err != nil {
			return nil
		}
		pid = &id
	}
	if pid == nil {
		return nil
	}
	tid, err := p.posts.ThreadIDFor(ctx, *pid)
	if err != nil {
		return nil
	}
	return &tid
}

// ValidateUsernames reports, for every name mentioned in text, whether an
// account with that username exists.
func (p *Processor) ValidateUsernames(ctx context.Context, text string) (map[string]bool, error) {
	names := Extract(text)
	out := make(map[string]bool, len(names))
	if len(names) == 0 {
		return out, nil
	}
	users, err := p.users.FindByUsernames(ctx, names)
	if err != nil {
		return nil, err
	}
	for _, n := range names {
		out[n] = false
	}
	for _, u := range users {
		if _, ok := out[u.Username]; ok {
			out[u.Username] = true
		}
	}
	return out, nil
}
