// handlers/reconcile.go
//
// Observation reconciliation: merge the client's desired observation set
// against the stored one into deletes, updates and inserts, resolving image
// uploads along the way.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/sstpro/backend/models"
)

// editEntry is one incoming observation in a create or update call. Pointer
// fields distinguish "omitted" from "present but empty": an omitted text or
// risk keeps the stored value on the update path, it never clears it.
//
// An entry with a non-nil ID targets an existing observation; without one it
// is a brand-new observation whose uploaded image, if any, is correlated by
// TempID.
type editEntry struct {
	ID          *uuid.UUID
	TempID      string
	Observation *string
	Risk        *string
	ImageURL    *string
	NewImage    bool
}

func (e editEntry) text() string {
	if e.Observation != nil {
		return *e.Observation
	}
	return ""
}

func (e editEntry) riskOrDefault() string {
	if e.Risk != nil && *e.Risk != "" {
		return *e.Risk
	}
	return models.RiskLow
}

// imageFieldKey is the multipart field name this entry's uploaded image
// arrives under.
func (e editEntry) imageFieldKey() string {
	if e.ID != nil {
		return "image_" + e.ID.String()
	}
	return "image_new_" + e.TempID
}

type editEntryJSON struct {
	ID          *string `json:"id"`
	TempID      string  `json:"tempId"`
	Observation *string `json:"observation"`
	Risk        *string `json:"risk"`
	ImageURL    *string `json:"imageUrl"`
	NewImage    bool    `json:"newImage"`
}

// parseEditEntries decodes the "observations" form field. Risk values are
// validated here, before anything touches the database. Entries without a
// tempId get a distinct synthetic one so two id-less entries can never be
// matched to the same uploaded file.
func parseEditEntries(raw string) ([]editEntry, error) {
	if raw == "" {
		return nil, nil
	}
	var wire []editEntryJSON
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, ValidationError{Msg: "observations must be a JSON array"}
	}

	entries := make([]editEntry, 0, len(wire))
	for i, we := range wire {
		e := editEntry{
			TempID:      we.TempID,
			Observation: we.Observation,
			Risk:        we.Risk,
			ImageURL:    we.ImageURL,
			NewImage:    we.NewImage,
		}
		if we.ID != nil && *we.ID != "" {
			id, err := uuid.Parse(*we.ID)
			if err != nil {
				return nil, validationErrorf("observation %d: invalid id %q", i, *we.ID)
			}
			e.ID = &id
		}
		if we.Risk != nil && *we.Risk != "" && !models.ValidRisk(*we.Risk) {
			return nil, validationErrorf("observation %d: risk must be %q, %q or %q",
				i, models.RiskLow, models.RiskMedium, models.RiskHigh)
		}
		if e.ID == nil && e.TempID == "" {
			e.TempID = "auto-" + strconv.Itoa(i)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// parseDeletionIDs decodes the "deletedObservations" form field.
func parseDeletionIDs(raw string) ([]uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	var wire []string
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, ValidationError{Msg: "deletedObservations must be a JSON array of ids"}
	}
	ids := make([]uuid.UUID, 0, len(wire))
	for _, s := range wire {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, validationErrorf("invalid deletion id %q", s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// reconcileObservations merges the submitted entries against the report's
// stored observations and returns the authoritative post-mutation list.
//
//  1. An id in both the deletion list and an edit entry is rejected: applying
//     both would be a delete-then-reinsert with undefined state.
//  2. An entry whose id matches nothing goes down the insert path with a
//     fresh id. Long-standing client-facing behavior, kept as is.
//  3. All image uploads settle before the first database write; the resolved
//     URLs are inputs to those writes.
//  4. Writes apply deletes, then updates, then inserts, then the report row
//     itself, in one transaction. Blob deletions are best-effort and never
//     abort the row change.
func (h *Handler) reconcileObservations(
	ctx context.Context,
	userID uuid.UUID,
	report *models.Report,
	entries []editEntry,
	files map[string]*multipart.FileHeader,
	deleteIDs []uuid.UUID,
) ([]models.Observation, error) {

	var existingList []models.Observation
	if err := h.DB.Where("report_id = ?", report.ID).Find(&existingList).Error; err != nil {
		return nil, UpstreamError{Op: "load observations", Err: err}
	}
	existing := make(map[uuid.UUID]models.Observation, len(existingList))
	for _, o := range existingList {
		existing[o.ID] = o
	}

	deleting := make(map[uuid.UUID]bool, len(deleteIDs))
	for _, id := range deleteIDs {
		deleting[id] = true
	}
	for _, e := range entries {
		if e.ID != nil && deleting[*e.ID] {
			return nil, validationErrorf("observation %s is both edited and deleted", e.ID)
		}
	}

	// Resolve images first. Each upload lands on a distinct object key, so
	// the fan-out is safe; nothing is written to the database until all of
	// them have settled.
	uploadedURLs := make([]*string, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadWorkers)
	for i, e := range entries {
		fh, ok := files[e.imageFieldKey()]
		if !ok {
			continue
		}
		if e.ID != nil && !e.NewImage {
			// A stray file without the newImage signal is ignored for
			// existing observations.
			continue
		}
		i := i
		g.Go(func() error {
			url, err := h.uploadFile(gctx, userID, fh)
			if err != nil {
				return fmt.Errorf("upload for entry %d: %w", i, err)
			}
			uploadedURLs[i] = &url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, UpstreamError{Op: "upload images", Err: err}
	}
	var freshBlobs []string
	for _, u := range uploadedURLs {
		if u != nil {
			freshBlobs = append(freshBlobs, *u)
		}
	}

	// Blob deletions are collected during the transaction and executed only
	// after it commits.
	var staleBlobs []string

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		// Deletes first: an id removed here can no longer collide with an
		// update below (the validation pass already rejected overlaps).
		for _, id := range deleteIDs {
			o, ok := existing[id]
			if !ok {
				continue
			}
			if err := tx.Delete(&models.Observation{}, "id = ?", id).Error; err != nil {
				return err
			}
			if o.ImageURL != nil {
				staleBlobs = append(staleBlobs, *o.ImageURL)
			}
			delete(existing, id)
		}

		for i, e := range entries {
			if e.ID != nil {
				if current, ok := existing[*e.ID]; ok {
					// Update path. Image precedence: fresh upload, then the
					// URL the client supplied, then whatever is stored.
					// Omitted text/risk keep the stored values.
					updated := current
					if e.Observation != nil && *e.Observation != "" {
						updated.Observation = *e.Observation
					}
					if e.Risk != nil && *e.Risk != "" {
						updated.Risk = *e.Risk
					}
					switch {
					case uploadedURLs[i] != nil:
						if current.ImageURL != nil && *current.ImageURL != *uploadedURLs[i] {
							staleBlobs = append(staleBlobs, *current.ImageURL)
						}
						updated.ImageURL = uploadedURLs[i]
					case e.ImageURL != nil && *e.ImageURL != "":
						if current.ImageURL != nil && *current.ImageURL != *e.ImageURL {
							staleBlobs = append(staleBlobs, *current.ImageURL)
						}
						updated.ImageURL = e.ImageURL
					}
					if err := tx.Save(&updated).Error; err != nil {
						return err
					}
					existing[*e.ID] = updated
					continue
				}
				// Unmatched id: falls through to the insert path with a
				// server-assigned id.
			}

			obs := models.Observation{
				ReportID:    report.ID,
				Observation: e.text(),
				Risk:        e.riskOrDefault(),
				ImageURL:    uploadedURLs[i],
			}
			if obs.ImageURL == nil && e.ImageURL != nil && *e.ImageURL != "" {
				obs.ImageURL = e.ImageURL
			}
			if err := tx.Create(&obs).Error; err != nil {
				return err
			}
		}

		// The report's own fields land in the same transaction, so a failed
		// save cannot leave the observations mutated on their own.
		return tx.Save(report).Error
	})
	if err != nil {
		// The rows never changed; drop the blobs uploaded for this call so
		// they don't dangle.
		h.cleanupBlobs(ctx, freshBlobs)
		return nil, UpstreamError{Op: "reconcile observations", Err: err}
	}

	h.cleanupBlobs(ctx, staleBlobs)

	// Re-read so the caller sees authoritative state, server-assigned ids
	// included.
	return h.reportObservations(report.ID)
}
