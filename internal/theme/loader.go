package theme

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/harborgoods/storefront-web/internal/cryptoutil"
	"github.com/harborgoods/storefront-web/internal/log"
	"github.com/harborgoods/storefront-web/internal/xerrors"
)

// Release identifies one published theme bundle: its SHA-256 plus an
// optional detached signature over the bundle bytes.
type Release struct {
	Hash      string
	Signature []byte
}

// ReleaseVerifier checks a detached signature over bundle bytes.
// Implemented by cryptoutil.KMSVerifier.
type ReleaseVerifier interface {
	VerifySignature(ctx context.Context, message, signature []byte) error
}

// ssmAPI and s3API are the AWS call subsets the loader needs, extracted
// so tests can substitute fakes without live credentials.
type ssmAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type LoaderOptions struct {
	Logger log.Logger

	// SSMParam holds the current release. The parameter value is the
	// bundle SHA-256 hex, optionally followed by whitespace and a
	// base64-encoded signature over the bundle bytes.
	SSMParam string

	// Bundles live at s3://{bucket}/{prefix}/{hash}.tar.gz.
	S3Bucket string
	S3Prefix string

	// Verifier, when set, makes signature verification mandatory:
	// unsigned releases are rejected.
	Verifier ReleaseVerifier

	// AWSConfig overrides the default credential chain; used in tests
	// and local development.
	AWSConfig *aws.Config
}

type Loader struct {
	opts      LoaderOptions
	ssmClient ssmAPI
	s3Client  s3API
	logger    log.Logger
}

func NewLoader(ctx context.Context, opts LoaderOptions) (*Loader, error) {
	if opts.SSMParam == "" {
		return nil, xerrors.New("SSMParam is required")
	}
	if opts.S3Bucket == "" {
		return nil, xerrors.New("S3Bucket is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}

	var awsCfg aws.Config
	var err error
	if opts.AWSConfig != nil {
		awsCfg = *opts.AWSConfig
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, xerrors.Wrap(err, "load AWS config")
		}
	}

	return &Loader{
		opts:      opts,
		ssmClient: ssm.NewFromConfig(awsCfg),
		s3Client:  s3.NewFromConfig(awsCfg),
		logger:    opts.Logger,
	}, nil
}

// FetchRelease reads the current release pointer from SSM.
func (l *Loader) FetchRelease(ctx context.Context) (Release, error) {
	out, err := l.ssmClient.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(l.opts.SSMParam),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return Release{}, xerrors.Wrapf(err, "get SSM parameter %s", l.opts.SSMParam)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return Release{}, xerrors.Newf("SSM parameter %s has no value", l.opts.SSMParam)
	}

	return parseRelease(l.opts.SSMParam, *out.Parameter.Value)
}

func parseRelease(param, value string) (Release, error) {
	fields := strings.Fields(value)
	switch len(fields) {
	case 0:
		return Release{}, xerrors.Newf("SSM parameter %s is empty", param)
	case 1:
		return Release{Hash: fields[0]}, nil
	case 2:
		sig, err := base64.StdEncoding.DecodeString(fields[1])
		if err != nil {
			return Release{}, xerrors.Wrapf(err, "SSM parameter %s: decode signature", param)
		}
		return Release{Hash: fields[0], Signature: sig}, nil
	default:
		return Release{}, xerrors.Newf("SSM parameter %s: unexpected format (%d fields)", param, len(fields))
	}
}

func (l *Loader) s3Key(hash string) string {
	if l.opts.S3Prefix != "" {
		return fmt.Sprintf("%s/%s.tar.gz", l.opts.S3Prefix, hash)
	}
	return fmt.Sprintf("%s.tar.gz", hash)
}

// LoadRelease downloads, verifies, and extracts one bundle, returning a
// snapshot ready to swap into the manager.
func (l *Loader) LoadRelease(ctx context.Context, rel Release) (*Snapshot, error) {
	loadedAt := time.Now().UTC()
	key := l.s3Key(rel.Hash)

	l.logger.Info(ctx, "downloading theme bundle",
		"bucket", l.opts.S3Bucket,
		"key", key,
		"expected_hash", rel.Hash,
	)

	out, err := l.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.opts.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, xerrors.Wrapf(err, "get S3 object s3://%s/%s", l.opts.S3Bucket, key)
	}
	defer out.Body.Close()

	data, actualHash, err := readWithHash(out.Body, maxBundleSize)
	if err != nil {
		return nil, xerrors.Wrap(err, "download bundle")
	}

	// constant-time compare is house policy for hashes even when the
	// value is not secret
	if !cryptoutil.HashEqual(actualHash, rel.Hash) {
		return nil, xerrors.Newf("checksum mismatch: expected %s, got %s", rel.Hash, actualHash)
	}

	signed := false
	if l.opts.Verifier != nil {
		if len(rel.Signature) == 0 {
			return nil, xerrors.Newf("release %s is unsigned but a verifier is configured", truncHash(rel.Hash))
		}
		if err := l.opts.Verifier.VerifySignature(ctx, data, rel.Signature); err != nil {
			return nil, xerrors.Wrapf(err, "verify signature of release %s", truncHash(rel.Hash))
		}
		signed = true
	}

	bundleFS, err := extractTarGz(data)
	if err != nil {
		return nil, xerrors.Wrap(err, "extract bundle")
	}

	var manifest *Manifest
	if m, err := LoadManifest(bundleFS); err != nil {
		l.logger.Warn(ctx, "theme bundle has no usable manifest",
			"hash", truncHash(rel.Hash),
			"error", err.Error(),
		)
	} else {
		manifest = m
		l.logger.Info(ctx, "loaded theme bundle",
			"name", manifest.Name,
			"version", manifest.Version,
			"hash", truncHash(rel.Hash),
			"signed", signed,
		)
	}

	return &Snapshot{
		FS: bundleFS,
		Meta: Meta{
			SHA256:     rel.Hash,
			Source:     SourceS3,
			VerifiedAt: time.Now().UTC(),
			Version:    manifestVersion(manifest),
			Signed:     signed,
		},
		Manifest: manifest,
		LoadedAt: loadedAt,
	}, nil
}

// Load fetches the current release and returns its snapshot.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	rel, err := l.FetchRelease(ctx)
	if err != nil {
		return nil, err
	}
	return l.LoadRelease(ctx, rel)
}

// LoadIntoManager fetches the current release and installs it.
func (l *Loader) LoadIntoManager(ctx context.Context, mgr *Manager) error {
	snap, err := l.Load(ctx)
	if err != nil {
		return err
	}
	mgr.Set(*snap)
	return nil
}

func manifestVersion(m *Manifest) string {
	if m == nil {
		return ""
	}
	return m.Version
}
