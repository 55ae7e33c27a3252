package urlnorm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootAddsSlashToEmptyPath(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://sqr-006.lsst.io":                    "https://sqr-006.lsst.io/",
		"https://user:pw@example.com:8443?a=1#frag":  "https://user:pw@example.com:8443/?a=1#frag",
		"http://EXAMPLE.com?b=2&a=1":                 "http://EXAMPLE.com/?b=2&a=1",
		"https://pipelines.lsst.io/v/weekly/":        "https://pipelines.lsst.io/v/weekly/",
		"https://developer.lsst.io/index.html?x=y#z": "https://developer.lsst.io/index.html?x=y#z",
	}
	for in, want := range cases {
		got, err := Root(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.String(), in)
	}
}

func TestRootPreservesComponents(t *testing.T) {
	t.Parallel()

	u, err := Root("https://user:pw@example.com:8443?q=1#top")
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "example.com:8443", u.Host)
	assert.Equal(t, "8443", u.Port())
	assert.Equal(t, "user:pw", u.User.String())
	assert.Equal(t, "q=1", u.RawQuery)
	assert.Equal(t, "top", u.Fragment)
	assert.Equal(t, "/", u.Path)
}

func TestRepoStripsGitSuffix(t *testing.T) {
	t.Parallel()

	got, err := Repo("https://github.com/lsst-sqre/sqr-006.git")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/lsst-sqre/sqr-006", got.String())

	again, err := Repo(got.String())
	require.NoError(t, err)
	assert.Equal(t, got.String(), again.String(), "normalization must be idempotent")
}

func TestRepoKeepsOtherComponents(t *testing.T) {
	t.Parallel()

	got, err := Repo("https://token@github.com:443/lsst/afw.git?ref=main#readme")
	require.NoError(t, err)
	assert.Equal(t, "https://token@github.com:443/lsst/afw?ref=main#readme", got.String())

	plain, err := Repo("https://github.com/lsst/afw")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/lsst/afw", plain.String())
}

func TestWithTrailingSlash(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://dmtn-008.lsst.io":       "https://dmtn-008.lsst.io/",
		"https://dmtn-008.lsst.io/":      "https://dmtn-008.lsst.io/",
		"https://pipelines.lsst.io/v/22": "https://pipelines.lsst.io/v/22/",
	}
	for in, want := range cases {
		got, err := WithTrailingSlash(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestInvalidURLs(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "not a url", "/relative/path", "mailto:someone@example.com", "http://[::1"} {
		_, err := Root(in)
		require.Error(t, err, in)
		var invalid *InvalidURLError
		require.True(t, errors.As(err, &invalid), in)
		assert.Equal(t, in, invalid.Value)

		_, err = Repo(in)
		require.Error(t, err, in)
	}
}
