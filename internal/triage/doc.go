// Package triage provides the business boundary for Sift's feedback triage.
// It defines the pure classifier and scorer (Classify, Score, Assess), the
// Service that owns the feedback lifecycle and its audit trail, the Store
// interface (persistence), and the domain models.
package triage
