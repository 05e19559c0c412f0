// Package export writes run reports to S3 for client hand-off. Client ops
// teams get a CSV they can open in a spreadsheet; nobody asks them to query
// the portal database.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/cratecrew/boxops/internal/domain"
)

// Reporter uploads audit run reports to an S3 bucket.
type Reporter struct {
	s3Client *s3.Client
	bucket   string
}

// NewReporter creates an S3 report exporter. An empty profile uses the
// default credential chain (IAM role on ECS).
func NewReporter(ctx context.Context, bucket, region, profile string) (*Reporter, error) {
	var cfg aws.Config
	var err error
	if profile != "" {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
			awsconfig.WithSharedConfigProfile(profile),
		)
	} else {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return &Reporter{
		s3Client: s3.NewFromConfig(cfg),
		bucket:   bucket,
	}, nil
}

// UploadRunReport renders the run's audit records as CSV and uploads it to
// reports/{org}/{run}-{timestamp}.csv. Returns the object key.
func (r *Reporter) UploadRunReport(ctx context.Context, run *domain.MigrationRun, records []domain.AuditRecord) (string, error) {
	body, err := renderCSV(records)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("reports/%s/%s-%s.csv",
		run.OrganizationID, run.ID, time.Now().UTC().Format("20060102T150405Z"))

	_, err = r.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", fmt.Errorf("upload run report: %w", err)
	}

	log.Printf("[export] uploaded run report s3://%s/%s (%d records)", r.bucket, key, len(records))
	return key, nil
}

func renderCSV(records []domain.AuditRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"subscriber_id", "status", "detected_sequences", "proposed_next_box",
		"resolved_next_box", "flag_reasons", "confidence_score",
		"resolved_by", "resolution_note", "error_message",
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, rec := range records {
		row := []string{
			rec.SubscriberID,
			string(rec.Status),
			joinInts(rec.DetectedSequences),
			strconv.Itoa(rec.ProposedNextBox),
			optInt(rec.ResolvedNextBox),
			strings.Join(rec.FlagReasons, ";"),
			strconv.FormatFloat(rec.ConfidenceScore, 'f', 2, 64),
			optStr(rec.ResolvedBy),
			optStr(rec.ResolutionNote),
			rec.ErrorMessage,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func joinInts(in []int) string {
	parts := make([]string, len(in))
	for i, v := range in {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ";")
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optStr(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
