package workday

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseBoardURL(t *testing.T) {
	b, err := parseBoardURL("https://nvidia.wd5.myworkdayjobs.com/NVIDIAExternalCareerSite")
	require.NoError(t, err)
	require.Equal(t, "nvidia", b.Tenant)
	require.Equal(t, "NVIDIAExternalCareerSite", b.Site)
	require.Equal(t, "nvidia.wd5.myworkdayjobs.com", b.Host)
	require.Equal(t, "https://nvidia.wd5.myworkdayjobs.com/wday/cxs/nvidia/NVIDIAExternalCareerSite/jobs", b.jobsEndpoint())
}

func TestParseBoardURLWithLocale(t *testing.T) {
	b, err := parseBoardURL("https://acme.wd1.myworkdayjobs.com/en-US/Careers")
	require.NoError(t, err)
	require.Equal(t, "acme", b.Tenant)
	require.Equal(t, "Careers", b.Site, "locale segment is skipped")
}

func TestParseBoardURLDefaultsScheme(t *testing.T) {
	b, err := parseBoardURL("acme.wd1.myworkdayjobs.com/Careers")
	require.NoError(t, err)
	require.Equal(t, "https", b.Scheme)
}

func TestParseBoardURLRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "   ", "https://myworkdayjobs.com/Careers", "https://acme.wd1.myworkdayjobs.com"} {
		_, err := parseBoardURL(raw)
		require.Error(t, err, raw)
	}
}

func TestAbsoluteURL(t *testing.T) {
	b := board{Scheme: "https", Host: "acme.wd1.myworkdayjobs.com"}
	require.Equal(t,
		"https://acme.wd1.myworkdayjobs.com/Careers/job/Remote/Engineer_JR-100",
		b.absoluteURL("Careers/job/Remote/Engineer_JR-100"))
	require.Equal(t, "https://other.example/x", b.absoluteURL("https://other.example/x"))
	require.Equal(t, "", b.absoluteURL("  "))
}

func TestJobIDFromPath(t *testing.T) {
	require.Equal(t, "JR-100", jobIDFromPath("Careers/job/Remote/Engineer_JR-100", nil))
	require.Equal(t, "R12345", jobIDFromPath("Careers/job/Remote/Engineer", []string{"R12345"}))
	require.Equal(t, "Engineer", jobIDFromPath("Careers/job/Remote/Engineer", nil))
	require.Equal(t, "", jobIDFromPath("", nil))
}

func TestJobPath(t *testing.T) {
	require.Equal(t, "/job/Remote/Engineer_JR-100", jobPath("/Careers/job/Remote/Engineer_JR-100", "Careers"))
	require.Equal(t, "/Remote/Engineer", jobPath("/Careers/Remote/Engineer", "Careers"))
}
