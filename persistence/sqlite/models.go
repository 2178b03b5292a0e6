package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/flarexio/docrag"
)

const modelColumns = `id, name, provider, model_name, api_key, base_url, is_active,
	parameters, created_by, created_at`

type modelRepository struct {
	db *sql.DB
}

var _ docrag.ModelRepository = (*modelRepository)(nil)

func (r *modelRepository) Store(ctx context.Context, model *docrag.LLMModel) error {
	params, err := json.Marshal(model.Parameters)
	if err != nil {
		return fmt.Errorf("marshalling parameters: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO llm_models (`+modelColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, model.ID, model.Name, model.Provider, model.ModelName, nullString(model.APIKey),
		nullString(model.BaseURL), model.IsActive, string(params), nullString(model.CreatedBy),
		model.CreatedAt.UTC())

	if err != nil {
		return fmt.Errorf("saving model: %w", err)
	}

	return nil
}

func (r *modelRepository) Update(ctx context.Context, model *docrag.LLMModel) error {
	params, err := json.Marshal(model.Parameters)
	if err != nil {
		return fmt.Errorf("marshalling parameters: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE llm_models SET
			name = ?,
			provider = ?,
			model_name = ?,
			api_key = ?,
			base_url = ?,
			is_active = ?,
			parameters = ?
		WHERE id = ?
	`, model.Name, model.Provider, model.ModelName, nullString(model.APIKey),
		nullString(model.BaseURL), model.IsActive, string(params), model.ID)

	if err != nil {
		return fmt.Errorf("updating model: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return docrag.ErrModelNotFound
	}

	return nil
}

func scanModel(row scanner) (*docrag.LLMModel, error) {
	var (
		model                      docrag.LLMModel
		apiKey, baseURL, createdBy sql.NullString
		params                     string
	)

	err := row.Scan(&model.ID, &model.Name, &model.Provider, &model.ModelName, &apiKey,
		&baseURL, &model.IsActive, &params, &createdBy, &model.CreatedAt)

	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(params), &model.Parameters); err != nil {
		return nil, fmt.Errorf("unmarshalling parameters: %w", err)
	}

	if model.Parameters == nil {
		model.Parameters = make(map[string]any)
	}

	model.APIKey = apiKey.String
	model.BaseURL = baseURL.String
	model.CreatedBy = createdBy.String

	return &model, nil
}

func (r *modelRepository) Find(ctx context.Context, id string) (*docrag.LLMModel, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+modelColumns+` FROM llm_models WHERE id = ?
	`, id)

	model, err := scanModel(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, docrag.ErrModelNotFound
		}

		return nil, fmt.Errorf("scanning model: %w", err)
	}

	return model, nil
}

func (r *modelRepository) List(ctx context.Context, activeOnly bool) ([]*docrag.LLMModel, error) {
	stmt := `SELECT ` + modelColumns + ` FROM llm_models`
	if activeOnly {
		stmt += " WHERE is_active = 1"
	}

	stmt += " ORDER BY created_at"

	rows, err := r.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("querying models: %w", err)
	}
	defer rows.Close()

	models := make([]*docrag.LLMModel, 0)
	for rows.Next() {
		model, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning model: %w", err)
		}

		models = append(models, model)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating models: %w", err)
	}

	return models, nil
}
