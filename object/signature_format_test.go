package object

import "testing"

func TestDetectSignatureType(t *testing.T) {
	cases := []struct {
		name string
		sig  string
		want SignatureType
	}{
		{"openpgp signature", "-----BEGIN PGP SIGNATURE-----\n...\n-----END PGP SIGNATURE-----\n", SignatureTypeOpenPGP},
		{"openpgp message", "-----BEGIN PGP MESSAGE-----\n...\n-----END PGP MESSAGE-----\n", SignatureTypeOpenPGP},
		{"x509 certificate", "-----BEGIN CERTIFICATE-----\n...\n-----END CERTIFICATE-----\n", SignatureTypeX509},
		{"x509 signed message", "-----BEGIN SIGNED MESSAGE-----\n...\n-----END SIGNED MESSAGE-----\n", SignatureTypeX509},
		{"ssh signature", "-----BEGIN SSH SIGNATURE-----\n...\n-----END SSH SIGNATURE-----\n", SignatureTypeSSH},
		{"unrecognized", "not a signature at all", SignatureTypeUnknown},
		{"empty", "", SignatureTypeUnknown},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := DetectSignatureType([]byte(c.sig)); got != c.want {
				t.Errorf("DetectSignatureType(%q) = %v, want %v", c.sig, got, c.want)
			}
		})
	}
}

func TestSignatureTypeString(t *testing.T) {
	cases := map[SignatureType]string{
		SignatureTypeOpenPGP: "openpgp",
		SignatureTypeX509:    "x509",
		SignatureTypeSSH:     "ssh",
		SignatureTypeUnknown: "unknown",
	}
	for typ, want := range cases {
		if got := typ.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", typ, got, want)
		}
	}
}
