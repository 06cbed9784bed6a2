package novatel

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommander_Encode(t *testing.T) {
	db := loadDB(t)
	c := NewCommander(db)

	ascii, err := c.Encode("LOG COM1 BESTPOSA ONTIME 1", EncodeASCII)
	require.NoError(t, err)
	assert.Equal(t,
		"#LOGA,THISPORT,0,0.0,UNKNOWN,0,0.000,00000000,5c9a,0;COM1,BESTPOSA,ONTIME,1.000000,0.000000,NOHOLD*54edacb0\r\n",
		string(ascii))

	bin, err := c.Encode("LOG COM1 BESTPOSA ONTIME 1", EncodeBinary)
	require.NoError(t, err)
	assert.Equal(t,
		"aa44121c010000c0200000000014000000000000000000009a5c0000200000002a00200002000000000000000000f03f0000000000000000000000006b47dbf2",
		hex.EncodeToString(bin))

	// the encoded command frames and decodes like any other message
	f := NewFramer()
	_, err = f.Write(bin)
	require.NoError(t, err)
	frame, _, err := f.Read()
	require.NoError(t, err)
	d := decodeFrame(t, db, frame)
	trigger, err := Lookup(&d.hdr, d.msg, "trigger")
	require.NoError(t, err)
	assert.Equal(t, int32(2), trigger)
}

func TestCommander_Errors(t *testing.T) {
	db := loadDB(t)
	c := NewCommander(db)

	tests := []struct {
		name    string
		command string
		format  EncodeFormat
		want    Status
	}{
		{"unknown command", "FROBNICATE 1", EncodeASCII, StatusNoDefinition},
		{"empty", "   ", EncodeASCII, StatusMalformedInput},
		{"bad enum", "LOG COM9 BESTPOSA ONTIME 1", EncodeASCII, StatusMalformedInput},
		{"too many arguments", "LOG COM1 BESTPOSA ONTIME 1 0 HOLD extra", EncodeASCII, StatusMalformedInput},
		{"json", "LOG COM1 BESTPOSA", EncodeJSON, StatusUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Encode(tt.command, tt.format)
			assert.Equal(t, tt.want, StatusOf(err))
		})
	}

	_, err := NewCommander(nil).Encode("LOG", EncodeASCII)
	assert.ErrorIs(t, err, StatusNoDatabase)
}

func TestCommander_MissingArgumentsAreZero(t *testing.T) {
	db := loadDB(t)
	out, err := NewCommander(db).Encode("interfacemode COM2", EncodeASCII)
	require.NoError(t, err)
	assert.Contains(t, string(out), ";COM2,0,0,FALSE*")
}
