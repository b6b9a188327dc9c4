package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"accreditation-system/internal/status"
	"accreditation-system/internal/store"
	"accreditation-system/models"
	"accreditation-system/monitoring"
)

// Canonical participant fields a spreadsheet column can map to.
const (
	FieldName          = "name"
	FieldLastName      = "lastName"
	FieldNationalID    = "nationalId"
	FieldEntryCode     = "entryCode"
	FieldPhone         = "phone"
	FieldEmail         = "email"
	FieldPaymentMethod = "paymentMethod"
	FieldCategory      = "category"
	FieldPriceOwed     = "priceOwed"
	FieldAmountPaid    = "amountPaid"
)

// DefaultColumnAliases maps the header spellings seen in the wild (Spanish
// and English) to canonical fields. Matching is case and accent insensitive.
func DefaultColumnAliases() map[string]string {
	return map[string]string{
		"NOMBRE":         FieldName,
		"NAME":           FieldName,
		"APELLIDO":       FieldLastName,
		"APELLIDOS":      FieldLastName,
		"LASTNAME":       FieldLastName,
		"DNI":            FieldNationalID,
		"DOCUMENTO":      FieldNationalID,
		"NATIONAL_ID":    FieldNationalID,
		"NRO ENTRADA":    FieldEntryCode,
		"NÚMERO ENTRADA": FieldEntryCode,
		"NUMERO ENTRADA": FieldEntryCode,
		"ENTRADA":        FieldEntryCode,
		"ENTRY_NO":       FieldEntryCode,
		"TICKET":         FieldEntryCode,
		"TELEFONO":       FieldPhone,
		"TELÉFONO":       FieldPhone,
		"CELULAR":        FieldPhone,
		"PHONE":          FieldPhone,
		"CORREO":         FieldEmail,
		"EMAIL":          FieldEmail,
		"MAIL":           FieldEmail,
		"MEDIO PAGO":     FieldPaymentMethod,
		"MEDIO_PAGO":     FieldPaymentMethod,
		"FORMA PAGO":     FieldPaymentMethod,
		"PAY_METHOD":     FieldPaymentMethod,
		"RUBRO":          FieldCategory,
		"CATEGORIA":      FieldCategory,
		"CATEGORÍA":      FieldCategory,
		"CATEGORY":       FieldCategory,
		"PRECIO ENTRADA": FieldPriceOwed,
		"PRECIO_ENTRADA": FieldPriceOwed,
		"PRECIO":         FieldPriceOwed,
		"PRICE":          FieldPriceOwed,
		"MONTO PAGADO":   FieldAmountPaid,
		"MONTO_PAGADO":   FieldAmountPaid,
		"MONTO":          FieldAmountPaid,
		"PAGO":           FieldAmountPaid,
		"AMOUNT_PAID":    FieldAmountPaid,
	}
}

// DefaultRequiredFields lists the canonical fields a row must carry to be
// submitted. Money fields are never required: they default instead.
func DefaultRequiredFields() []string {
	return []string{
		FieldName,
		FieldLastName,
		FieldNationalID,
		FieldEntryCode,
		FieldPaymentMethod,
		FieldCategory,
	}
}

type ImportConfig struct {
	Aliases     map[string]string
	Required    []string
	ProgressTTL time.Duration
}

func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		Aliases:     DefaultColumnAliases(),
		Required:    DefaultRequiredFields(),
		ProgressTTL: time.Hour,
	}
}

// Table is a parsed rectangular upload: free-text headers plus data rows.
type Table struct {
	Headers []string
	Rows    [][]string
}

// ReadCSVTable decodes an uploaded CSV. A file without a header row and at
// least one data row is a parse failure.
func ReadCSVTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrParse, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: no data rows", status.ErrParse)
	}

	return &Table{Headers: records[0], Rows: records[1:]}, nil
}

type ProgressFunc func(processed, total int)

// ImportService turns a tabular upload into participant records and submits
// them one by one, tallying outcomes. Submission is strictly sequential so
// per-row progress and error attribution stay deterministic.
type ImportService struct {
	store       store.ParticipantStore
	redis       *redis.Client
	aliases     map[string]string
	required    []string
	progressTTL time.Duration
}

func NewImportService(participantStore store.ParticipantStore, redisClient *redis.Client, cfg ImportConfig) *ImportService {
	aliases := make(map[string]string, len(cfg.Aliases))
	for alias, field := range cfg.Aliases {
		aliases[normalizeHeader(alias)] = field
	}
	return &ImportService{
		store:       participantStore,
		redis:       redisClient,
		aliases:     aliases,
		required:    cfg.Required,
		progressTTL: cfg.ProgressTTL,
	}
}

// Run executes one import. Rows failing local validation are skipped and
// counted; a table where nothing survives validation aborts with ErrParse
// before touching the store. A single row's submission failure never stops
// the batch.
func (s *ImportService) Run(ctx context.Context, eventID string, table *Table, onProgress ProgressFunc) (*models.ImportSummary, error) {
	if table == nil || len(table.Rows) == 0 {
		return nil, fmt.Errorf("%w: no data rows", status.ErrParse)
	}
	if _, err := s.store.FindEvent(ctx, eventID); err != nil {
		return nil, err
	}

	columns := s.resolveColumns(table.Headers)

	var records []models.ParticipantFields
	skipped := 0
	for i, row := range table.Rows {
		fields, missing := s.parseRow(columns, row)
		if len(missing) > 0 {
			skipped++
			slog.Warn("import row skipped",
				"event_id", eventID,
				"row", i+2, // 1-based, counting the header
				"missing", strings.Join(missing, ","),
			)
			continue
		}
		records = append(records, fields)
	}

	if len(records) == 0 {
		// fail fast: nothing valid, nothing was submitted
		return nil, fmt.Errorf("%w: no row passed validation", status.ErrParse)
	}

	jobID := uuid.New().String()
	summary := &models.ImportSummary{
		JobID:     jobID,
		EventID:   eventID,
		Total:     len(table.Rows),
		Submitted: len(records),
		Skipped:   skipped,
		StartedAt: time.Now(),
	}
	for i := 0; i < skipped; i++ {
		monitoring.TrackImportRow(eventID, "skipped")
	}
	s.writeProgress(ctx, summary, 0, false)

	for i, fields := range records {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		_, err := s.store.CreateParticipant(ctx, eventID, fields)
		switch {
		case err == nil:
			summary.Success++
			monitoring.TrackImportRow(eventID, "success")
		case isConflict(err):
			summary.Conflict++
			monitoring.TrackImportRow(eventID, "conflict")
		default:
			summary.Failed++
			monitoring.TrackImportRow(eventID, "failed")
			slog.Warn("import row failed",
				"event_id", eventID,
				"national_id", fields.NationalID,
				"error", err,
			)
		}

		s.writeProgress(ctx, summary, i+1, false)
		if onProgress != nil {
			onProgress(i+1, len(records))
		}
	}

	s.writeProgress(ctx, summary, len(records), true)
	return summary, nil
}

// Progress reads the live state of a running or recently finished job.
func (s *ImportService) Progress(ctx context.Context, jobID string) (*models.ImportProgress, error) {
	key := progressKey(jobID)
	data, err := s.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, status.ErrNotFound
	}

	progress := &models.ImportProgress{JobID: jobID}
	progress.Processed = atoi(data["processed"])
	progress.Total = atoi(data["total"])
	progress.Success = atoi(data["success"])
	progress.Conflict = atoi(data["conflict"])
	progress.Failed = atoi(data["failed"])
	progress.Skipped = atoi(data["skipped"])
	progress.Done = data["done"] == "1"
	return progress, nil
}

func (s *ImportService) resolveColumns(headers []string) map[int]string {
	columns := make(map[int]string)
	seen := make(map[string]bool)
	for i, header := range headers {
		field, ok := s.aliases[normalizeHeader(header)]
		if !ok || seen[field] {
			continue
		}
		columns[i] = field
		seen[field] = true
	}
	return columns
}

func (s *ImportService) parseRow(columns map[int]string, row []string) (models.ParticipantFields, []string) {
	values := make(map[string]string)
	for i, field := range columns {
		if i >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[i]); v != "" {
			values[field] = v
		}
	}

	fields := models.ParticipantFields{
		Name:          values[FieldName],
		LastName:      values[FieldLastName],
		NationalID:    values[FieldNationalID],
		EntryCode:     values[FieldEntryCode],
		Phone:         values[FieldPhone],
		Email:         values[FieldEmail],
		PaymentMethod: values[FieldPaymentMethod],
		Category:      values[FieldCategory],
		PriceOwed:     parsePrice(values[FieldPriceOwed]),
		AmountPaid:    parseAmount(values[FieldAmountPaid]),
	}

	var missing []string
	for _, field := range s.required {
		if _, ok := values[field]; !ok && field != FieldAmountPaid && field != FieldPriceOwed {
			missing = append(missing, field)
		}
	}
	return fields, missing
}

var nonMonetary = regexp.MustCompile(`[^0-9.,-]`)

// parseMoney extracts a decimal from a free-form cell: currency symbols
// stripped, a comma decimal separator converted to dot. Thousand-grouped
// values are ambiguous between locales and treated as unparsable.
func parseMoney(raw string) (decimal.Decimal, bool) {
	cleaned := nonMonetary.ReplaceAllString(raw, "")
	cleaned = strings.Replace(cleaned, ",", ".", 1)
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

// An unparsable price owed becomes null.
func parsePrice(raw string) *decimal.Decimal {
	if raw == "" {
		return nil
	}
	d, ok := parseMoney(raw)
	if !ok {
		return nil
	}
	return &d
}

// An unparsable amount paid becomes 0, a policy default rather than an error.
func parseAmount(raw string) decimal.Decimal {
	if raw == "" {
		return decimal.Zero
	}
	d, ok := parseMoney(raw)
	if !ok {
		return decimal.Zero
	}
	return d
}

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeHeader canonicalizes a free-text column name: trimmed,
// uppercased, accents folded, inner whitespace collapsed.
func normalizeHeader(header string) string {
	folded, _, err := transform.String(accentFolder, header)
	if err != nil {
		folded = header
	}
	return strings.ToUpper(strings.Join(strings.Fields(folded), " "))
}

func isConflict(err error) bool {
	return err != nil && errors.Is(err, status.ErrConflict)
}

func (s *ImportService) writeProgress(ctx context.Context, summary *models.ImportSummary, processed int, done bool) {
	key := progressKey(summary.JobID)
	doneFlag := "0"
	if done {
		doneFlag = "1"
	}
	s.redis.HSet(ctx, key, map[string]any{
		"event_id":  summary.EventID,
		"processed": processed,
		"total":     summary.Submitted,
		"success":   summary.Success,
		"conflict":  summary.Conflict,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
		"done":      doneFlag,
	})
	s.redis.Expire(ctx, key, s.progressTTL)
}

func progressKey(jobID string) string {
	return fmt.Sprintf("import:progress:%s", jobID)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
