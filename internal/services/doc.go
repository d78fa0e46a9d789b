// Package services holds cross-cutting helpers shared by the scan pipeline
// components: context annotation keys used for structured logging and the
// sentinel errors that classify failures surfaced to callers.
package services
