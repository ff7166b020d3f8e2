package service

import (
	"context"
	"testing"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

func (e *testEnv) createArticle(t *testing.T, author *domain.User, title string, published bool) *domain.Article {
	t.Helper()
	article, err := e.knowledge.CreateArticle(context.Background(), author, ArticleInput{
		Title:       title,
		Content:     "Restart the spooler service.",
		Category:    "printing",
		Tags:        []string{"Printer", " printer ", "windows"},
		IsPublished: published,
	})
	if err != nil {
		t.Fatalf("CreateArticle() error = %v", err)
	}
	return article
}

func TestVoteOnceEver(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	article := env.createArticle(t, env.support, "Fix printer", true)

	voted, err := env.knowledge.Vote(ctx, env.client, article.ID, true)
	if err != nil {
		t.Fatalf("Vote() error = %v", err)
	}
	if voted.HelpfulCount != 1 || voted.NotHelpfulCount != 0 {
		t.Fatalf("counters = %d/%d, want 1/0", voted.HelpfulCount, voted.NotHelpfulCount)
	}

	_, err = env.knowledge.Vote(ctx, env.client, article.ID, false)
	wantCode(t, err, apperrors.CodeAlreadyVoted)

	view, err := env.knowledge.GetArticle(ctx, env.client, article.ID)
	if err != nil {
		t.Fatalf("GetArticle() error = %v", err)
	}
	if view.Article.HelpfulCount != 1 || view.Article.NotHelpfulCount != 0 {
		t.Fatalf("counters after rejected vote = %d/%d, want 1/0",
			view.Article.HelpfulCount, view.Article.NotHelpfulCount)
	}
	if view.UserVote == nil || *view.UserVote != domain.VoteHelpful {
		t.Fatalf("UserVote = %v, want helpful", view.UserVote)
	}

	// A different reader still gets a vote.
	if _, err := env.knowledge.Vote(ctx, env.client2, article.ID, false); err != nil {
		t.Fatalf("second reader Vote() error = %v", err)
	}
}

func TestGetArticleCountsEveryView(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	article := env.createArticle(t, env.support, "Reset password", true)

	for i := 1; i <= 3; i++ {
		view, err := env.knowledge.GetArticle(ctx, env.client, article.ID)
		if err != nil {
			t.Fatalf("GetArticle() error = %v", err)
		}
		if view.Article.Views != int64(i) {
			t.Fatalf("views = %d, want %d", view.Article.Views, i)
		}
	}
}

func TestDraftsHiddenFromClients(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	draft := env.createArticle(t, env.support, "Draft", false)
	env.createArticle(t, env.support, "Live", true)

	_, err := env.knowledge.GetArticle(ctx, env.client, draft.ID)
	wantCode(t, err, apperrors.CodeNotFound)
	_, err = env.knowledge.Vote(ctx, env.client, draft.ID, true)
	wantCode(t, err, apperrors.CodeNotFound)

	clientList, err := env.knowledge.ListArticles(ctx, env.client, ArticleListFilter{IncludeDrafts: true})
	if err != nil {
		t.Fatalf("ListArticles() error = %v", err)
	}
	if len(clientList) != 1 {
		t.Fatalf("client sees %d articles, want 1", len(clientList))
	}
	staffList, err := env.knowledge.ListArticles(ctx, env.support, ArticleListFilter{IncludeDrafts: true})
	if err != nil {
		t.Fatalf("ListArticles(staff) error = %v", err)
	}
	if len(staffList) != 2 {
		t.Fatalf("staff sees %d articles, want 2", len(staffList))
	}
}

func TestArticleEditPermissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	article := env.createArticle(t, env.support, "VPN setup", true)
	if len(article.Tags) != 2 {
		t.Fatalf("tags = %v, want deduplicated [printer windows]", article.Tags)
	}

	_, err := env.knowledge.CreateArticle(ctx, env.client, ArticleInput{Title: "t", Content: "c"})
	wantCode(t, err, apperrors.CodeForbidden)

	_, err = env.knowledge.UpdateArticle(ctx, env.support2, article.ID, ArticlePatch{Title: ptr("hijack")})
	wantCode(t, err, apperrors.CodeForbidden)

	updated, err := env.knowledge.UpdateArticle(ctx, env.admin, article.ID, ArticlePatch{Title: ptr("VPN setup (2024)")})
	if err != nil {
		t.Fatalf("admin UpdateArticle() error = %v", err)
	}
	if updated.Title != "VPN setup (2024)" {
		t.Fatalf("title = %q", updated.Title)
	}

	wantCode(t, env.knowledge.DeleteArticle(ctx, env.support2, article.ID), apperrors.CodeForbidden)
	if err := env.knowledge.DeleteArticle(ctx, env.support, article.ID); err != nil {
		t.Fatalf("DeleteArticle() error = %v", err)
	}
}

func TestPublishingAnnouncesArticle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	draft := env.createArticle(t, env.support, "Wi-Fi", false)

	count := func() int64 {
		n, err := env.notifications.UnreadCount(ctx, env.admin)
		if err != nil {
			t.Fatalf("UnreadCount() error = %v", err)
		}
		return n
	}
	if got := count(); got != 0 {
		t.Fatalf("unread before publish = %d, want 0", got)
	}
	if _, err := env.knowledge.UpdateArticle(ctx, env.support, draft.ID, ArticlePatch{IsPublished: ptr(true)}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := count(); got != 1 {
		t.Fatalf("unread after publish = %d, want 1", got)
	}
	// Clients do not see broadcasts, so each active client gets a copy.
	for _, client := range []*domain.User{env.client, env.client2} {
		var notices int
		for _, n := range env.inbox(t, client) {
			if n.Type == domain.NotificationArticlePublished && n.RelatedID == draft.ID && n.UserID == client.ID {
				notices++
			}
		}
		if notices != 1 {
			t.Fatalf("%s got %d article notices, want 1", client.ID, notices)
		}
	}
	if got := len(env.inbox(t, env.support)); got != 1 {
		t.Fatalf("support inbox has %d notifications, want only the broadcast", got)
	}
	if _, err := env.knowledge.UpdateArticle(ctx, env.support, draft.ID, ArticlePatch{Content: ptr("Forget the network.")}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if got := count(); got != 1 {
		t.Fatalf("unread after plain edit = %d, want 1", got)
	}
}
