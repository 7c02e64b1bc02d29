// Package s3 provides a client for S3-compatible object storage such as
// Hetzner Object Storage.
//
// It is used to archive provisioning reports: the bucket is created on
// first use and every report is written as one object.
package s3
