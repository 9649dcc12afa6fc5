package preview

import (
	"encoding/binary"
	"errors"
	"os"

	"github.com/BurntSushi/xgb/xproto"
)

func isWindowGone(err error) bool {
	var we xproto.WindowError
	var de xproto.DrawableError
	return errors.As(err, &we) || errors.As(err, &de)
}

func encodeCardinal(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

var currentPID = os.Getpid
