package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// KnowledgeHandler serves knowledge-base articles and votes.
type KnowledgeHandler struct {
	service *service.KnowledgeService
}

// NewKnowledgeHandler constructs handler.
func NewKnowledgeHandler(knowledgeService *service.KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{service: knowledgeService}
}

// ListArticles GET /knowledge-base.
func (h *KnowledgeHandler) ListArticles(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	articles, err := h.service.ListArticles(c.UserContext(), user, service.ArticleListFilter{
		Search:        optionalQuery(c, "search"),
		Category:      optionalQuery(c, "category"),
		IncludeDrafts: c.QueryBool("includeDrafts", false),
	})
	if err != nil {
		return err
	}
	items := make([]dto.ArticleResponse, 0, len(articles))
	for i := range articles {
		items = append(items, articleResponse(&articles[i], nil))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetArticle GET /knowledge-base/:id. Each call counts as a view.
func (h *KnowledgeHandler) GetArticle(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	view, err := h.service.GetArticle(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": articleResponse(view.Article, view.UserVote)})
}

// CreateArticle POST /knowledge-base.
func (h *KnowledgeHandler) CreateArticle(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateArticleRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	article, err := h.service.CreateArticle(c.UserContext(), user, service.ArticleInput{
		Title:       req.Title,
		Content:     req.Content,
		Category:    req.Category,
		Tags:        req.Tags,
		IsPublished: req.IsPublished,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": articleResponse(article, nil)})
}

// UpdateArticle PUT /knowledge-base/:id.
func (h *KnowledgeHandler) UpdateArticle(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.UpdateArticleRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	article, err := h.service.UpdateArticle(c.UserContext(), user, c.Params("id"), service.ArticlePatch{
		Title:       req.Title,
		Content:     req.Content,
		Category:    req.Category,
		Tags:        req.Tags,
		IsPublished: req.IsPublished,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": articleResponse(article, nil)})
}

// DeleteArticle DELETE /knowledge-base/:id.
func (h *KnowledgeHandler) DeleteArticle(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteArticle(c.UserContext(), user, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": c.Params("id"), "deleted": true}})
}

// Vote POST /knowledge-base/:id/vote.
func (h *KnowledgeHandler) Vote(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.VoteRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	if req.IsHelpful == nil {
		return apperrors.NewFieldValidationError(map[string]string{"isHelpful": "required"})
	}
	article, err := h.service.Vote(c.UserContext(), user, c.Params("id"), *req.IsHelpful)
	if err != nil {
		return err
	}
	kind := domain.VoteKindFor(*req.IsHelpful)
	return c.JSON(fiber.Map{"data": articleResponse(article, &kind)})
}

func articleResponse(article *domain.Article, vote *domain.VoteKind) dto.ArticleResponse {
	tags := article.Tags
	if tags == nil {
		tags = []string{}
	}
	return dto.ArticleResponse{
		ID:              article.ID,
		Title:           article.Title,
		Content:         article.Content,
		Category:        article.Category,
		Tags:            tags,
		AuthorID:        article.AuthorID,
		IsPublished:     article.IsPublished,
		Views:           article.Views,
		HelpfulCount:    article.HelpfulCount,
		NotHelpfulCount: article.NotHelpfulCount,
		UserVote:        vote,
		CreatedAt:       article.CreatedAt,
		UpdatedAt:       article.UpdatedAt,
	}
}
