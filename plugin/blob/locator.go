package blob

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/hrygo/snapnote/internal/errors"
)

// Locator addresses one object in a bucket/key blob store.
type Locator struct {
	Bucket string
	Key    string
	// Region is set when the URI names one, e.g. bucket.s3.eu-west-1.amazonaws.com.
	Region string
}

var (
	// s3.amazonaws.com, s3.<region>.amazonaws.com, s3-<region>.amazonaws.com
	pathStyleHost = regexp.MustCompile(`^s3(?:[.-]([a-z0-9-]+))?\.amazonaws\.com$`)
	// <bucket>.s3.amazonaws.com, <bucket>.s3.<region>.amazonaws.com, <bucket>.s3-<region>.amazonaws.com
	virtualHost = regexp.MustCompile(`^(.+)\.s3(?:[.-]([a-z0-9-]+))?\.amazonaws\.com$`)
)

// LocatorParser decomposes object URIs into locators.
// Endpoint, when set, is a custom S3-compatible host (MinIO, LocalStack) addressed path-style.
type LocatorParser struct {
	Endpoint string
}

// ParseLocator parses uri with the standard AWS forms only.
func ParseLocator(uri string) (*Locator, error) {
	return (&LocatorParser{}).Parse(uri)
}

// Parse decomposes uri into bucket and key.
//
// Accepted forms:
//
//	s3://bucket/key
//	https://bucket.s3[.region].amazonaws.com/key
//	https://s3[.region].amazonaws.com/bucket/key
//	http(s)://<custom endpoint host>/bucket/key
func (p *LocatorParser) Parse(uri string) (*Locator, error) {
	raw := strings.TrimSpace(uri)
	if raw == "" {
		return nil, errors.InvalidLocator(uri, "object uri is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidLocator, "object uri is not a valid url").WithContext("uri", uri)
	}

	var loc *Locator
	switch strings.ToLower(u.Scheme) {
	case "s3":
		loc = &Locator{Bucket: u.Host, Key: strings.TrimPrefix(u.Path, "/")}
	case "http", "https":
		loc, err = p.parseHTTP(uri, u)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.InvalidLocator(uri, "unsupported uri scheme")
	}

	if loc.Bucket == "" {
		return nil, errors.InvalidLocator(uri, "bucket is empty")
	}
	if loc.Key == "" {
		return nil, errors.InvalidLocator(uri, "key is empty")
	}
	return loc, nil
}

func (p *LocatorParser) parseHTTP(uri string, u *url.URL) (*Locator, error) {
	host := strings.ToLower(u.Hostname())
	path := strings.TrimPrefix(u.Path, "/")

	if m := pathStyleHost.FindStringSubmatch(host); m != nil {
		return splitPathStyle(path, m[1]), nil
	}
	if m := virtualHost.FindStringSubmatch(host); m != nil {
		return &Locator{Bucket: m[1], Key: path, Region: m[2]}, nil
	}
	if p.Endpoint != "" && host == endpointHost(p.Endpoint) {
		return splitPathStyle(path, ""), nil
	}
	return nil, errors.InvalidLocator(uri, "host is not a recognised blob store endpoint")
}

func splitPathStyle(path, region string) *Locator {
	bucket, key, _ := strings.Cut(path, "/")
	return &Locator{Bucket: bucket, Key: key, Region: region}
}

func endpointHost(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		return strings.ToLower(u.Hostname())
	}
	return strings.ToLower(endpoint)
}
