package notify

import (
	"fmt"
	"time"
)

// QueryKeyCatalogingJobs is the query-cache key invalidated after every
// flush. Host applications key their jobs list query on it.
const QueryKeyCatalogingJobs = "cataloging-jobs"

// Failure toasts stay on screen longer than success toasts.
const (
	SuccessToastDuration = 5 * time.Second
	FailureToastDuration = 8 * time.Second
)

type ToastKind string

const (
	ToastInfo    ToastKind = "info"
	ToastSuccess ToastKind = "success"
	ToastFailure ToastKind = "failure"
)

// ToastAction is the optional navigation affordance on a toast.
type ToastAction struct {
	Label string
	Href  string
}

type Toast struct {
	Kind        ToastKind
	Title       string
	Description string
	Action      *ToastAction
	Duration    time.Duration
}

// BuildToasts renders a flushed batch. A bucket with exactly one event
// yields an individual toast linking to that job; a bucket with two or more
// collapses into a single aggregated toast. Empty buckets render nothing,
// so a flush produces between one and three toasts.
func BuildToasts(b *Batch) []Toast {
	var toasts []Toast
	switch n := len(b.Successful); {
	case n == 1:
		toasts = append(toasts, successToast(b.Successful[0]))
	case n >= 2:
		toasts = append(toasts, aggregatedSuccessToast(n))
	}
	switch n := len(b.Failed); {
	case n == 1:
		toasts = append(toasts, failureToast(b.Failed[0]))
	case n >= 2:
		toasts = append(toasts, aggregatedFailureToast(n))
	}
	switch n := len(b.Other); {
	case n == 1:
		toasts = append(toasts, genericToast(b.Other[0]))
	case n >= 2:
		toasts = append(toasts, aggregatedGenericToast(n))
	}
	return toasts
}

func successToast(ev Event) Toast {
	t := Toast{
		Kind:        ToastSuccess,
		Title:       "Job Completed",
		Description: "A cataloging job has been processed successfully.",
		Duration:    SuccessToastDuration,
	}
	if ev.EntityID != "" {
		t.Action = &ToastAction{Label: "View Job", Href: "/cataloging/jobs/" + ev.EntityID}
	}
	return t
}

func failureToast(ev Event) Toast {
	t := Toast{
		Kind:        ToastFailure,
		Title:       "Job Failed",
		Description: "A cataloging job failed to process.",
		Duration:    FailureToastDuration,
	}
	if ev.EntityID != "" {
		t.Action = &ToastAction{Label: "Review Error", Href: "/cataloging/jobs/" + ev.EntityID + "?focus=error"}
	}
	return t
}

func genericToast(ev Event) Toast {
	t := Toast{
		Kind:        ToastInfo,
		Title:       "Job Updated",
		Description: "A cataloging job was updated.",
		Duration:    SuccessToastDuration,
	}
	if ev.EntityID != "" {
		t.Action = &ToastAction{Label: "View Job", Href: "/cataloging/jobs/" + ev.EntityID}
	}
	return t
}

func aggregatedSuccessToast(n int) Toast {
	return Toast{
		Kind:        ToastSuccess,
		Title:       "Multiple Jobs Updated",
		Description: fmt.Sprintf("%d cataloging jobs have been processed successfully", n),
		Action:      &ToastAction{Label: "View Jobs", Href: "/cataloging/jobs"},
		Duration:    SuccessToastDuration,
	}
}

func aggregatedFailureToast(n int) Toast {
	return Toast{
		Kind:        ToastFailure,
		Title:       "Multiple Jobs Failed",
		Description: fmt.Sprintf("%d cataloging jobs failed to process", n),
		Action:      &ToastAction{Label: "Review Failures", Href: "/cataloging/jobs?status=failed"},
		Duration:    FailureToastDuration,
	}
}

func aggregatedGenericToast(n int) Toast {
	return Toast{
		Kind:        ToastInfo,
		Title:       "Multiple Jobs Updated",
		Description: fmt.Sprintf("%d cataloging jobs were updated", n),
		Action:      &ToastAction{Label: "View Jobs", Href: "/cataloging/jobs"},
		Duration:    SuccessToastDuration,
	}
}
