// Package cloud moves BIDS datasets and derivatives between local disk
// and S3. Bulk transfer shells out to the aws CLI for its parallel
// recursive copy; bucket validation talks to the S3 API directly.
package cloud
