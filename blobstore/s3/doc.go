// Package s3 stores feature bank snapshots in Amazon S3.
//
// # Usage
//
//	store, err := s3.New(ctx, "training-artifacts",
//	    s3.WithPrefix("runs/byol-cifar10/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
// Reads use ranged GetObject requests, writes go through the multipart
// upload manager and listings are paginated.
package s3
