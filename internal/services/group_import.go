package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/desafio-dunas/registration-api/internal/logging"
	"github.com/desafio-dunas/registration-api/internal/models"
	"go.uber.org/zap"
)

// GroupCreator creates a single team group
type GroupCreator interface {
	CreateGroup(ctx context.Context, req models.TeamGroupRequest) (*models.TeamGroup, error)
}

// GroupImportResult summarizes a bulk import
type GroupImportResult struct {
	Created []models.TeamGroup `json:"created"`
	Skipped []string           `json:"skipped"`
	Failed  map[string]string  `json:"failed"`
}

var groupCSVColumns = []string{"name", "channel", "contact", "contact_email", "contact_phone"}

// ParseGroupCSV reads groups from CSV with a header row. name, channel and contact
// are required columns; contact_email and contact_phone are optional.
func ParseGroupCSV(r io.Reader) ([]models.TeamGroupRequest, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty group file")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range groupCSVColumns[:3] {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	get := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var groups []models.TeamGroupRequest
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if get(row, "name") == "" {
			continue
		}

		channel, err := strconv.ParseFloat(strings.ReplaceAll(get(row, "channel"), ",", "."), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid channel %q", line, get(row, "channel"))
		}

		groups = append(groups, models.TeamGroupRequest{
			Name:         get(row, "name"),
			Channel:      channel,
			Contact:      get(row, "contact"),
			ContactEmail: get(row, "contact_email"),
			ContactPhone: get(row, "contact_phone"),
		})
	}
	return groups, nil
}

// ImportGroups creates groups in file order so team numbers follow it.
// Names that already exist are skipped; other failures are collected and the import continues.
func ImportGroups(ctx context.Context, creator GroupCreator, groups []models.TeamGroupRequest, logger *logging.SafeLogger) (*GroupImportResult, error) {
	result := &GroupImportResult{Failed: make(map[string]string)}

	for _, req := range groups {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		group, err := creator.CreateGroup(ctx, req)
		switch {
		case errors.Is(err, models.ErrGroupNameExists):
			result.Skipped = append(result.Skipped, req.Name)
		case err != nil:
			result.Failed[req.Name] = err.Error()
			logger.Warn("failed to import group", zap.String("name", req.Name), zap.Error(err))
		default:
			result.Created = append(result.Created, *group)
		}
	}

	logger.Info("group import finished",
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("failed", len(result.Failed)))
	return result, nil
}
