// Package common holds helpers shared by several services.
//
// It provides the run lock that keeps two generators from writing into the
// same output directory at once.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
