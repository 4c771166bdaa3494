package wire

import "encoding/binary"

// Serialize writes a framed packet into dst and returns the number of bytes
// written. encrypt, if non-nil, transforms the body bytes in place after
// they are copied into dst and before the checksum is computed, so the
// checksum always covers ciphertext rather than plaintext.
func Serialize(dst []byte, target Target, body []byte, encrypt Cipher) (int, error) {
	if dst == nil {
		return -1, ErrNilBuffer
	}
	total := HeaderSize + len(body) + ChecksumSize
	if total > len(dst) {
		return -1, ErrFrameTooLarge
	}

	binary.BigEndian.PutUint32(dst[0:4], uint32(total))
	copy(dst[4:4+TargetSize], make([]byte, TargetSize)) // zero the tag first
	copy(dst[4:4+TargetSize], target[:])

	bodyOff := HeaderSize
	copy(dst[bodyOff:bodyOff+len(body)], body)
	cipherBody := dst[bodyOff : bodyOff+len(body)]
	encrypt.Apply(cipherBody)

	dst[total-1] = checksum(dst[:total-1])
	return total, nil
}

// Parse validates and decodes a single framed packet out of src. The
// returned body is a slice into src (decrypted in place when decrypt is
// non-nil) and is only valid until src is reused or released.
func Parse(src []byte, decrypt Cipher) (Target, []byte, error) {
	var target Target
	if len(src) < MinFrameSize {
		return target, nil, ErrTooShort
	}
	total := binary.BigEndian.Uint32(src[0:4])
	if int(total) != len(src) {
		return target, nil, ErrLengthMismatch
	}
	want := src[len(src)-1]
	got := checksum(src[:len(src)-1])
	if want != got {
		return target, nil, ErrChecksumFail
	}
	copy(target[:], src[4:4+TargetSize])

	bodyLen := int(total) - HeaderSize - ChecksumSize
	body := src[HeaderSize : HeaderSize+bodyLen]
	decrypt.Apply(body)
	return target, body, nil
}
