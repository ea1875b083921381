// Package broker implements the broker role: the dispatch loop,
// execution recorder, lease reaper, drone checkin, and the workflow
// recorder side-effect. RPC transport lives in internal/dronerpc.
package broker

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"gorm.io/gorm"

	"github.com/rocktick/rocktick/internal/config"
	"github.com/rocktick/rocktick/internal/dronerpc"
	"github.com/rocktick/rocktick/internal/models"
	"github.com/rocktick/rocktick/internal/secrets"
	"github.com/rocktick/rocktick/internal/signing"
)

// Dispatcher runs the admission+lease+enrich query.
type Dispatcher struct {
	Keyring               *secrets.KeyRing
	FallbackSigningSecret []byte
	Cfg                   config.BrokerConfig
}

type dispatchRow struct {
	ID                     string
	LockNonce              int64
	ScheduledAt            time.Time
	TenantID               *string
	TimeoutMs              *int32
	MaxResponseBytes       *int64
	ReqMethod              string
	ReqURL                 string
	ReqHeaders             string
	ReqBody                []byte
	TenantMaxTimeoutMs     *int32
	TenantMaxResponseBytes *int64
	CurrentSigningKeyID    *string
}

// Dispatch runs the single admission/lease/debit statement for region
// and returns the enriched, ready-to-stream job specs. Callers own the
// transaction: one commit covers the lease and the debit, so a drone
// disconnect after commit leaves the jobs leased for the reaper.
func (d *Dispatcher) Dispatch(ctx context.Context, tx *gorm.DB, region string) ([]dronerpc.JobSpec, error) {
	homeWindow := intervalLiteral(d.Cfg.HomeRegionWindow)
	spillover := intervalLiteral(d.Cfg.SpilloverWindow)

	var rows []dispatchRow
	err := tx.WithContext(ctx).Raw(`
		WITH locked_tenants AS (
			SELECT id, tokens FROM tenants WHERE tokens > 0 FOR UPDATE SKIP LOCKED
		),
		tenanted_candidates AS (
			SELECT sj.id, sj.tenant_id,
				ROW_NUMBER() OVER (PARTITION BY sj.tenant_id ORDER BY sj.scheduled_at ASC, sj.id ASC) AS rn
			FROM scheduled_jobs sj
			JOIN locked_tenants lt ON lt.id = sj.tenant_id
			WHERE sj.lock_nonce IS NULL AND sj.execution_id IS NULL AND sj.deleted_at IS NULL
				AND ((sj.region = ? AND sj.scheduled_at <= now() + ?::interval)
					 OR sj.scheduled_at <= now() - ?::interval)
		),
		tenanted_selected AS (
			SELECT tc.id, tc.tenant_id
			FROM tenanted_candidates tc
			JOIN locked_tenants lt ON lt.id = tc.tenant_id
			WHERE tc.rn <= lt.tokens
		),
		anonymous_candidates AS (
			SELECT sj.id
			FROM scheduled_jobs sj
			WHERE sj.tenant_id IS NULL AND sj.lock_nonce IS NULL AND sj.execution_id IS NULL AND sj.deleted_at IS NULL
				AND ((sj.region = ? AND sj.scheduled_at <= now() + ?::interval)
					 OR sj.scheduled_at <= now() - ?::interval)
			ORDER BY sj.scheduled_at ASC, sj.id ASC
			LIMIT ?
		),
		all_selected AS (
			SELECT id, tenant_id FROM tenanted_selected
			UNION ALL
			SELECT id, NULL::varchar FROM anonymous_candidates
		),
		-- lock_nonce must flow out of the RETURNING set: the final
		-- SELECT still reads the statement-start snapshot of
		-- scheduled_jobs, where the nonce is NULL.
		leased AS (
			UPDATE scheduled_jobs sj
			SET lock_nonce = floor(extract(epoch FROM now())), times_locked = sj.times_locked + 1
			FROM all_selected sel
			WHERE sj.id = sel.id
			RETURNING sj.id AS id, sj.lock_nonce AS lock_nonce, sel.tenant_id AS tenant_id
		),
		debit_totals AS (
			SELECT tenant_id, count(*) AS cnt FROM leased WHERE tenant_id IS NOT NULL GROUP BY tenant_id
		),
		debited AS (
			UPDATE tenants t
			SET tokens = GREATEST(0, t.tokens - sub.cnt)
			FROM debit_totals sub
			WHERE t.id = sub.tenant_id
			RETURNING t.id
		)
		SELECT
			sj.id AS id,
			leased.lock_nonce AS lock_nonce,
			sj.scheduled_at AS scheduled_at,
			sj.tenant_id AS tenant_id,
			sj.timeout_ms AS timeout_ms,
			sj.max_response_bytes AS max_response_bytes,
			req.method AS req_method,
			req.url AS req_url,
			req.headers AS req_headers,
			req.body AS req_body,
			t.max_timeout_ms AS tenant_max_timeout_ms,
			t.max_response_bytes AS tenant_max_response_bytes,
			t.current_signing_key_id AS current_signing_key_id
		FROM leased
		JOIN scheduled_jobs sj ON sj.id = leased.id
		JOIN http_requests req ON req.id = sj.request_id
		LEFT JOIN tenants t ON t.id = sj.tenant_id
	`, region, homeWindow, spillover, region, homeWindow, spillover, d.Cfg.AnonymousCandidateCap).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("dispatch: admission query: %w", err)
	}

	specs := make([]dronerpc.JobSpec, 0, len(rows))
	for _, row := range rows {
		spec, err := d.enrich(tx, row)
		if err != nil {
			return nil, fmt.Errorf("dispatch: enrich %s: %w", row.ID, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (d *Dispatcher) enrich(tx *gorm.DB, row dispatchRow) (dronerpc.JobSpec, error) {
	timeoutMs := d.Cfg.DefaultTimeoutMs
	if row.TimeoutMs != nil {
		timeoutMs = *row.TimeoutMs
	} else if row.TenantMaxTimeoutMs != nil {
		timeoutMs = *row.TenantMaxTimeoutMs
	}

	var maxResponseBytes int64
	if row.MaxResponseBytes != nil {
		maxResponseBytes = *row.MaxResponseBytes
	} else if row.TenantMaxResponseBytes != nil {
		maxResponseBytes = *row.TenantMaxResponseBytes
	}

	headers := ParseHeaders(row.ReqHeaders)
	headers = StripRocktickHeaders(headers)
	headers["Rocktick-Job-Id"] = row.ID

	signingKey, err := d.resolveSigningSecret(tx, row.CurrentSigningKeyID)
	if err != nil {
		return dronerpc.JobSpec{}, err
	}
	if signingKey != nil {
		header, err := (signing.Builder{
			Key:  signingKey,
			Time: time.Now().UTC(),
			Path: urlPath(row.ReqURL),
			Body: row.ReqBody,
		}).SignatureHeader()
		if err == nil {
			headers["Rocktick-Signature"] = header
		}
		// A signing failure is never fatal to dispatch: the job still
		// goes out, just unsigned.
	}

	return dronerpc.JobSpec{
		JobID:            row.ID,
		LockNonce:        row.LockNonce,
		ScheduledAt:      row.ScheduledAt.UnixMilli(),
		Method:           row.ReqMethod,
		URL:              row.ReqURL,
		Headers:          headers,
		Body:             row.ReqBody,
		TimeoutMs:        timeoutMs,
		MaxResponseBytes: maxResponseBytes,
	}, nil
}

// resolveSigningSecret decrypts the tenant's current signing secret
// through the key ring, or falls back to the process-wide fallback
// secret for untenanted jobs. Never cached beyond this one call.
func (d *Dispatcher) resolveSigningSecret(tx *gorm.DB, signingKeyID *string) ([]byte, error) {
	if signingKeyID == nil {
		if len(d.FallbackSigningSecret) == 0 {
			return nil, nil
		}
		return d.FallbackSigningSecret, nil
	}
	if d.Keyring == nil {
		return nil, nil
	}

	var row models.SigningKey
	if err := tx.Raw(`SELECT * FROM signing_keys WHERE id = ?`, *signingKeyID).Scan(&row).Error; err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}
	if row.ID == "" {
		return nil, nil
	}
	secret, err := d.Keyring.Open(&row)
	if err != nil {
		return nil, nil
	}
	return secret, nil
}

func intervalLiteral(d time.Duration) string {
	return fmt.Sprintf("%d milliseconds", d.Milliseconds())
}

// urlPath extracts the path component, plus "?" and the raw query when
// the URL has one, signed into the HMAC message:
// "." + t + "." + path + ("." + body)?.
func urlPath(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Path == "" {
		return rawURL
	}
	if parsed.RawQuery != "" {
		return parsed.Path + "?" + parsed.RawQuery
	}
	return parsed.Path
}
