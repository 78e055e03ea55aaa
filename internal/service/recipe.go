package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/recipebox/recipebox/internal/metrics"
	"github.com/recipebox/recipebox/internal/model"
	"github.com/recipebox/recipebox/internal/repository"
	"github.com/recipebox/recipebox/internal/storage"
)

// Recipe field messages.
const (
	msgPriceInvalid    = "A valid number is required."
	msgPriceRange      = "Ensure that there are no more than 5 digits in total, with at most 2 decimal places."
	msgPriceNegative   = "Ensure this value is greater than or equal to 0."
	msgImageMissing    = "No file was submitted."
	msgImageEmpty      = "The submitted file is empty."
	msgImageInvalid    = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."
	msgImageTooLargeFm = "Ensure the image is no larger than %d bytes."
)

// RecipeService handles recipe business logic.
type RecipeService struct {
	store        RecipeStore
	tags         *AttributeService
	ingredients  *AttributeService
	media        storage.Storage
	maxImageSize int64
	metrics      metrics.Recorder
	logger       *slog.Logger
}

// RecipeServiceConfig holds RecipeService dependencies.
type RecipeServiceConfig struct {
	Store        RecipeStore
	Tags         *AttributeService
	Ingredients  *AttributeService
	Media        storage.Storage
	MaxImageSize int64
	Metrics      metrics.Recorder
	Logger       *slog.Logger
}

// NewRecipeService creates a new RecipeService.
func NewRecipeService(cfg RecipeServiceConfig) *RecipeService {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &RecipeService{
		store:        cfg.Store,
		tags:         cfg.Tags,
		ingredients:  cfg.Ingredients,
		media:        cfg.Media,
		maxImageSize: cfg.MaxImageSize,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger.With("component", "recipe_service"),
	}
}

// RecipeInput defines recipe fields for create and update. Nil fields were
// absent from the request. Price is the decimal text of a JSON number or string.
type RecipeInput struct {
	Title       *string   `json:"title" validate:"omitnil,notblank,max=255"`
	TimeMinutes *int      `json:"time_minutes" validate:"omitnil,gte=0,lte=2147483647"`
	Price       *string   `json:"price"`
	Link        *string   `json:"link" validate:"omitnil,max=255"`
	Tags        *[]string `json:"tags"`
	Ingredients *[]string `json:"ingredients"`
}

// RecipeDetail is a recipe with its tags and ingredients resolved.
type RecipeDetail struct {
	*model.Recipe
	Tags        []*model.Attribute
	Ingredients []*model.Attribute
}

// ImageURL returns the public URL of the recipe image, or "" when absent.
func (s *RecipeService) ImageURL(r *model.Recipe) string {
	if !r.HasImage() || s.media == nil {
		return ""
	}
	return s.media.URL(r.Image)
}

// List returns the user's recipes newest first, optionally restricted to
// recipes linked to any of the given tag or ingredient ids.
func (s *RecipeService) List(ctx context.Context, userID string, tagIDs, ingredientIDs []string) ([]*model.Recipe, error) {
	recipes, err := s.store.ListRecipes(ctx, model.RecipeFilter{
		UserID:        userID,
		TagIDs:        tagIDs,
		IngredientIDs: ingredientIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	return recipes, nil
}

// Get retrieves a recipe owned by userID.
func (s *RecipeService) Get(ctx context.Context, userID, id string) (*model.Recipe, error) {
	recipe, err := s.store.GetRecipe(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrRecipeNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}
	return recipe, nil
}

// GetDetail retrieves a recipe with nested tags and ingredients.
func (s *RecipeService) GetDetail(ctx context.Context, userID, id string) (*RecipeDetail, error) {
	recipe, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	detail := &RecipeDetail{Recipe: recipe}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		attrs, _, err := s.tags.Lookup(gctx, recipe.TagIDs)
		detail.Tags = attrs
		return err
	})
	g.Go(func() error {
		attrs, _, err := s.ingredients.Lookup(gctx, recipe.IngredientIDs)
		detail.Ingredients = attrs
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return detail, nil
}

// Create adds a recipe and its links in one transaction.
// Referenced tags and ingredients must exist.
func (s *RecipeService) Create(ctx context.Context, userID string, input RecipeInput) (*model.Recipe, error) {
	verr := validateStruct(input)
	requireFields(verr, map[string]bool{
		"title":        input.Title != nil,
		"time_minutes": input.TimeMinutes != nil,
		"price":        input.Price != nil,
	})

	ts := now()
	recipe := &model.Recipe{
		ID:            newID(),
		UserID:        userID,
		TagIDs:        []string{},
		IngredientIDs: []string{},
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}

	if err := s.apply(ctx, recipe, input, verr); err != nil {
		return nil, err
	}

	if err := s.store.CreateRecipe(ctx, recipe); err != nil {
		if errors.Is(err, repository.ErrAttributeNotFound) {
			return nil, NewValidationError(NonFieldErrors, "A referenced tag or ingredient no longer exists.")
		}
		return nil, fmt.Errorf("failed to create recipe: %w", err)
	}

	s.metrics.IncRecipeCreated()

	return recipe, nil
}

// Update applies a full (PUT) or partial (PATCH) update to a recipe owned by
// userID. Tag and ingredient sets are replaced only when supplied.
func (s *RecipeService) Update(ctx context.Context, userID, id string, input RecipeInput, partial bool) (*model.Recipe, error) {
	verr := validateStruct(input)
	if !partial {
		requireFields(verr, map[string]bool{
			"title":        input.Title != nil,
			"time_minutes": input.TimeMinutes != nil,
			"price":        input.Price != nil,
		})
	}

	recipe, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if !partial {
		// PUT resets optional fields that were not supplied.
		if input.Link == nil {
			recipe.Link = ""
		}
		if input.Tags == nil {
			recipe.TagIDs = []string{}
		}
		if input.Ingredients == nil {
			recipe.IngredientIDs = []string{}
		}
	}

	if err := s.apply(ctx, recipe, input, verr); err != nil {
		return nil, err
	}
	recipe.UpdatedAt = now()

	replaceTags := !partial || input.Tags != nil
	replaceIngredients := !partial || input.Ingredients != nil

	if err := s.store.UpdateRecipe(ctx, recipe, replaceTags, replaceIngredients); err != nil {
		if errors.Is(err, repository.ErrRecipeNotFound) {
			return nil, ErrRecipeNotFound
		}
		if errors.Is(err, repository.ErrAttributeNotFound) {
			return nil, NewValidationError(NonFieldErrors, "A referenced tag or ingredient no longer exists.")
		}
		return nil, fmt.Errorf("failed to update recipe: %w", err)
	}

	s.metrics.IncRecipeUpdated()

	return recipe, nil
}

// Delete removes a recipe owned by userID and its stored image.
func (s *RecipeService) Delete(ctx context.Context, userID, id string) error {
	recipe, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.store.DeleteRecipe(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrRecipeNotFound) {
			return ErrRecipeNotFound
		}
		return fmt.Errorf("failed to delete recipe: %w", err)
	}

	s.removeImage(ctx, recipe.Image)
	s.metrics.IncRecipeDeleted()

	return nil
}

// UploadImage validates and stores an image for a recipe owned by userID,
// replacing and deleting any previous image. data is nil when no file was
// submitted.
func (s *RecipeService) UploadImage(ctx context.Context, userID, id string, data []byte) (*model.Recipe, error) {
	start := time.Now()

	recipe, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if data == nil {
		return nil, NewValidationError("image", msgImageMissing)
	}

	info, err := storage.ValidateImage(data, s.maxImageSize)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrImageEmpty):
			return nil, NewValidationError("image", msgImageEmpty)
		case errors.Is(err, storage.ErrImageTooLarge):
			return nil, NewValidationError("image", fmt.Sprintf(msgImageTooLargeFm, s.maxImageSize))
		default:
			return nil, NewValidationError("image", msgImageInvalid)
		}
	}

	key := storage.NewImageKey(info.Ext)
	if err := s.media.Save(ctx, key, bytes.NewReader(data), int64(len(data)), info.ContentType); err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	updatedAt := now()
	if err := s.store.SetRecipeImage(ctx, userID, id, key, updatedAt); err != nil {
		s.removeImage(ctx, key)
		if errors.Is(err, repository.ErrRecipeNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, fmt.Errorf("failed to set recipe image: %w", err)
	}

	s.removeImage(ctx, recipe.Image)

	recipe.Image = key
	recipe.UpdatedAt = updatedAt

	s.metrics.IncImageUploaded()
	s.metrics.ObserveImageUploadDuration(time.Since(start))

	return recipe, nil
}

// apply validates input against verr and copies supplied fields onto recipe.
func (s *RecipeService) apply(ctx context.Context, recipe *model.Recipe, input RecipeInput, verr *ValidationError) error {
	var price model.Price
	if input.Price != nil && !verr.Has("price") {
		var msg string
		price, msg = parsePriceField(*input.Price)
		if msg != "" {
			verr.Add("price", msg)
		}
	}

	var tagIDs, ingredientIDs []string
	if input.Tags != nil {
		tagIDs = dedupe(*input.Tags)
		if err := s.checkExists(ctx, s.tags, "tags", tagIDs, verr); err != nil {
			return err
		}
	}
	if input.Ingredients != nil {
		ingredientIDs = dedupe(*input.Ingredients)
		if err := s.checkExists(ctx, s.ingredients, "ingredients", ingredientIDs, verr); err != nil {
			return err
		}
	}

	if err := verr.OrNil(); err != nil {
		return err
	}

	if input.Title != nil {
		recipe.Title = strings.TrimSpace(*input.Title)
	}
	if input.TimeMinutes != nil {
		recipe.TimeMinutes = *input.TimeMinutes
	}
	if input.Price != nil {
		recipe.Price = price
	}
	if input.Link != nil {
		recipe.Link = strings.TrimSpace(*input.Link)
	}
	if input.Tags != nil {
		recipe.TagIDs = tagIDs
	}
	if input.Ingredients != nil {
		recipe.IngredientIDs = ingredientIDs
	}

	return nil
}

// checkExists adds a field error for every id that matches no attribute.
// Ownership is not checked.
func (s *RecipeService) checkExists(ctx context.Context, svc *AttributeService, field string, ids []string, verr *ValidationError) error {
	_, missing, err := svc.Lookup(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range missing {
		verr.Add(field, fmt.Sprintf("Invalid pk %q - object does not exist.", id))
	}
	return nil
}

func (s *RecipeService) removeImage(ctx context.Context, key string) {
	if key == "" || s.media == nil {
		return
	}
	if err := s.media.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete image",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

func parsePriceField(raw string) (model.Price, string) {
	if strings.HasPrefix(strings.TrimSpace(raw), "-") {
		if _, err := model.ParsePrice(strings.TrimPrefix(strings.TrimSpace(raw), "-")); err == nil {
			return 0, msgPriceNegative
		}
		return 0, msgPriceInvalid
	}

	price, err := model.ParsePrice(raw)
	switch {
	case errors.Is(err, model.ErrPriceOutOfRange):
		return 0, msgPriceRange
	case err != nil:
		return 0, msgPriceInvalid
	}
	return price, ""
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
