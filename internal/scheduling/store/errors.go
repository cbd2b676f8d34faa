// Package store holds sentinel errors shared by the appointment store
// implementations. Each substrate maps its own conflict signal (constraint
// violation, duplicate-key error, guarded check) onto these values so the
// service can shape party-specific conflict responses.
package store

import (
	"fmt"

	"amparo/pkg/platform/sentinel"
)

var (
	ErrCaregiverSlotTaken = fmt.Errorf("caregiver slot: %w", sentinel.ErrSlotTaken)
	ErrSubjectSlotTaken   = fmt.Errorf("subject slot: %w", sentinel.ErrSlotTaken)
)
