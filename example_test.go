package s3presign_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/s3types"
)

func ExampleClient_UploadFile() {
	client, err := s3presign.New(
		s3presign.WithRegion("us-west-2"),
		s3presign.WithMaxPartAttempts(3),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = client.Close() }()

	result, err := client.UploadFile(context.Background(), "my-bucket", "random-payload.bin", "/tmp/payload.bin",
		s3presign.WithPartCount(2),
		s3presign.WithTags(s3types.Tag{Key: "key", Value: "value"}),
		s3presign.WithVerify(true),
	)
	if err != nil {
		var verr *errors.VerificationError
		if stderrors.As(err, &verr) {
			for _, f := range verr.Failures {
				fmt.Fprintf(os.Stderr, "%s: expected %s, observed %s\n", f.Field, f.Expected, f.Observed)
			}
		}
		log.Fatal(err)
	}
	fmt.Println(result.ETag)
}

func ExampleClient_Upload() {
	client, err := s3presign.New(
		s3presign.WithEndpoint("http://localhost:4566"),
		s3presign.WithForcePathStyle(true),
		s3presign.WithCredentials("test", "test"),
	)
	if err != nil {
		log.Fatal(err)
	}

	payload := strings.NewReader(`{"hello":"world"}`)
	if _, err := client.Upload(context.Background(), "my-bucket", "random-hello.json", payload, payload.Size()); err != nil {
		log.Fatal(err)
	}
}

func ExampleClient_OpenSession() {
	client, err := s3presign.New()
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()

	session, err := client.OpenSession(ctx, s3types.UploadTarget{
		Bucket:      "my-bucket",
		Key:         "random-handoff.bin",
		ContentType: "application/octet-stream",
	}, 2)
	if err != nil {
		log.Fatal(err)
	}

	// hand the signed URLs to another agent
	for n := int32(1); n <= session.PartCount(); n++ {
		signed, err := session.SignPart(ctx, n, 30*time.Minute)
		if err != nil {
			_ = session.Abort(ctx)
			log.Fatal(err)
		}
		fmt.Println(signed.URL)
	}
	// record each part's ETag with session.AddPart as the agent reports
	// back, then call session.Complete
}

func ExampleClient_Sweep() {
	client, err := s3presign.New()
	if err != nil {
		log.Fatal(err)
	}

	aborted, err := client.Sweep(context.Background(), "my-bucket", "random-",
		s3presign.WithOlderThan(24*time.Hour),
	)
	if err != nil {
		log.Print(err)
	}
	fmt.Println("aborted", aborted)
}
