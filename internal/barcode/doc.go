// Package barcode wraps the QR symbol decoder behind a small Backend
// interface so callers can substitute a fake in tests.
package barcode
