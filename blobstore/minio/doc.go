// Package minio stores feature bank snapshots on MinIO or any other
// S3-compatible server (Ceph, Garage, SeaweedFS) through the MinIO client.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := minioblob.NewStore(client, "checkpoints", "byol/")
//
// Dial builds the client from an endpoint and static credentials.
package minio
