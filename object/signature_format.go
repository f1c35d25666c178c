package object

import "bytes"

// SignatureType identifies the cryptographic format of a commit or tag's
// embedded signature, detected from its PEM-like armor header.
type SignatureType int8

const (
	SignatureTypeUnknown SignatureType = iota
	SignatureTypeOpenPGP
	SignatureTypeX509
	SignatureTypeSSH
)

func (t SignatureType) String() string {
	switch t {
	case SignatureTypeOpenPGP:
		return "openpgp"
	case SignatureTypeX509:
		return "x509"
	case SignatureTypeSSH:
		return "ssh"
	default:
		return "unknown"
	}
}

type signatureFormat [][]byte

var (
	openPGPSignatureFormat = signatureFormat{
		[]byte("-----BEGIN PGP SIGNATURE-----"),
		[]byte("-----BEGIN PGP MESSAGE-----"),
	}
	x509SignatureFormat = signatureFormat{
		[]byte("-----BEGIN CERTIFICATE-----"),
		[]byte("-----BEGIN SIGNED MESSAGE-----"),
	}
	sshSignatureFormat = signatureFormat{
		[]byte("-----BEGIN SSH SIGNATURE-----"),
	}
)

var knownSignatureFormats = map[SignatureType]signatureFormat{
	SignatureTypeOpenPGP: openPGPSignatureFormat,
	SignatureTypeX509:    x509SignatureFormat,
	SignatureTypeSSH:     sshSignatureFormat,
}

// DetectSignatureType determines a signature block's format from its armor
// header.
func DetectSignatureType(signature []byte) SignatureType {
	for t, formats := range knownSignatureFormats {
		for _, begin := range formats {
			if bytes.HasPrefix(signature, begin) {
				return t
			}
		}
	}
	return SignatureTypeUnknown
}
