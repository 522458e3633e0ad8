package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/domain"
)

type PersonRepository struct {
	pool PgxPool
}

func NewPersonRepository(pool PgxPool) *PersonRepository {
	return &PersonRepository{pool: pool}
}

// ListSearching returns every person with status searching, oldest first,
// with their images in position order
func (r *PersonRepository) ListSearching(ctx context.Context) ([]domain.PersonRecord, error) {
	query := `
		SELECT id, full_name, status, created_at
		FROM persons
		WHERE status = $1
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query, domain.PersonStatusSearching)
	if err != nil {
		return nil, fmt.Errorf("list searching persons: %w", err)
	}
	defer rows.Close()

	var persons []domain.PersonRecord
	index := make(map[string]int)
	for rows.Next() {
		var p domain.PersonRecord
		if err := rows.Scan(&p.ID, &p.FullName, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		index[p.ID] = len(persons)
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persons: %w", err)
	}

	if len(persons) == 0 {
		return persons, nil
	}

	ids := make([]string, len(persons))
	for i, p := range persons {
		ids[i] = p.ID
	}

	images, err := r.listImages(ctx, ids)
	if err != nil {
		return nil, err
	}
	for personID, imgs := range images {
		if i, ok := index[personID]; ok {
			persons[i].Images = imgs
		}
	}

	return persons, nil
}

// GetByID returns a person with its images
func (r *PersonRepository) GetByID(ctx context.Context, id string) (*domain.PersonRecord, error) {
	query := `
		SELECT id, full_name, status, created_at
		FROM persons
		WHERE id = $1
	`

	var p domain.PersonRecord
	err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.FullName, &p.Status, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPersonNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get person by id: %w", err)
	}

	images, err := r.listImages(ctx, []string{p.ID})
	if err != nil {
		return nil, err
	}
	p.Images = images[p.ID]

	return &p, nil
}

func (r *PersonRepository) listImages(ctx context.Context, personIDs []string) (map[string][]domain.EnrollmentImage, error) {
	query := `
		SELECT id, person_id, position, data, content_type
		FROM person_images
		WHERE person_id = ANY($1)
		ORDER BY person_id, position
	`

	rows, err := r.pool.Query(ctx, query, personIDs)
	if err != nil {
		return nil, fmt.Errorf("list person images: %w", err)
	}
	defer rows.Close()

	images := make(map[string][]domain.EnrollmentImage, len(personIDs))
	for rows.Next() {
		var img domain.EnrollmentImage
		var personID string
		if err := rows.Scan(&img.ID, &personID, &img.Position, &img.Data, &img.ContentType); err != nil {
			return nil, fmt.Errorf("scan person image: %w", err)
		}
		images[personID] = append(images[personID], img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate person images: %w", err)
	}

	return images, nil
}

// Create inserts a person and its images in one transaction. The insert
// notification is delivered at commit, once the images are visible.
func (r *PersonRepository) Create(ctx context.Context, person *domain.PersonRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create person: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if person.Status == "" {
		person.Status = domain.PersonStatusSearching
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO persons (full_name, status)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, person.FullName, person.Status).Scan(&person.ID, &person.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrPersonExists
		}
		return fmt.Errorf("create person: %w", err)
	}

	for i := range person.Images {
		img := &person.Images[i]
		if img.Position == 0 {
			img.Position = i + 1
		}
		if img.ContentType == "" {
			img.ContentType = "image/jpeg"
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO person_images (person_id, position, data, content_type)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, person.ID, img.Position, img.Data, img.ContentType).Scan(&img.ID)
		if err != nil {
			return fmt.Errorf("create person image %d: %w", img.Position, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create person: %w", err)
	}

	return nil
}
