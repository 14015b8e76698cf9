package mail

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const htmlOnlyMessage = "From: news@example.com\r\n" +
	"To: alice@example.com\r\n" +
	"Subject: Weekly Newsletter\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=\"b1\"\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Hello</p>\r\n" +
	"--b1--\r\n"

func TestParseMessage(t *testing.T) {
	t.Run("single plain text part", func(t *testing.T) {
		msg, err := parseMessage([]byte("Subject: Hi\r\nFrom: a@example.com\r\n\r\nhello there\r\n"))

		require.NoError(t, err)
		assert.Equal(t, "hello there\r\n", msg.Content)
		assert.Equal(t, contentFromText, msg.ContentSource)
		assert.Equal(t, "utf-8", msg.Charset)
	})

	t.Run("html only falls back to subject", func(t *testing.T) {
		msg, err := parseMessage([]byte(htmlOnlyMessage))

		require.NoError(t, err)
		assert.Equal(t, "Weekly Newsletter", msg.Content)
		assert.Equal(t, contentFromSubject, msg.ContentSource)
	})

	t.Run("first inline plain part wins", func(t *testing.T) {
		raw := "Subject: Report\r\n" +
			"Content-Type: multipart/mixed; boundary=\"outer\"\r\n" +
			"\r\n" +
			"--outer\r\n" +
			"Content-Type: text/plain\r\n" +
			"Content-Disposition: attachment; filename=\"notes.txt\"\r\n" +
			"\r\n" +
			"attached notes\r\n" +
			"--outer\r\n" +
			"Content-Type: multipart/alternative; boundary=\"inner\"\r\n" +
			"\r\n" +
			"--inner\r\n" +
			"Content-Type: text/html\r\n" +
			"\r\n" +
			"<b>html body</b>\r\n" +
			"--inner\r\n" +
			"Content-Type: text/plain; charset=us-ascii\r\n" +
			"\r\n" +
			"plain body\r\n" +
			"--inner--\r\n" +
			"--outer\r\n" +
			"Content-Type: text/plain\r\n" +
			"\r\n" +
			"second plain body\r\n" +
			"--outer--\r\n"

		msg, err := parseMessage([]byte(raw))

		require.NoError(t, err)
		assert.Equal(t, "plain body", msg.Content)
		assert.Equal(t, "us-ascii", msg.Charset)
	})

	t.Run("encoded words and charset body", func(t *testing.T) {
		raw := "Subject: =?ISO-8859-1?Q?Caf=E9_menu?=\r\n" +
			"From: =?UTF-8?B?SsO8cmdlbg==?= <j@example.com>\r\n" +
			"Content-Type: text/plain; charset=iso-8859-1\r\n" +
			"Content-Transfer-Encoding: quoted-printable\r\n" +
			"\r\n" +
			"caf=E9 au lait\r\n"

		msg, err := parseMessage([]byte(raw))

		require.NoError(t, err)
		assert.Equal(t, "Café menu", msg.Subject)
		assert.Contains(t, msg.From, "Jürgen")
		assert.Equal(t, "café au lait", strings.TrimSpace(msg.Content))
		assert.Equal(t, "iso-8859-1", msg.Charset)
	})

	t.Run("unknown charset is decoded lossily", func(t *testing.T) {
		raw := "Subject: Odd\r\n" +
			"Content-Type: text/plain; charset=x-unknown-charset\r\n" +
			"\r\n" +
			"ok\xff\r\n"

		msg, err := parseMessage([]byte(raw))

		require.NoError(t, err)
		assert.Equal(t, "ok\uFFFD\r\n", msg.Content)
	})

	t.Run("no subject and no body", func(t *testing.T) {
		raw := "From: a@example.com\r\nContent-Type: image/png\r\n\r\nPNG"

		msg, err := parseMessage([]byte(raw))

		require.NoError(t, err)
		assert.Equal(t, "", msg.Content)
		assert.Equal(t, contentNone, msg.ContentSource)
	})

	t.Run("malformed header is an error", func(t *testing.T) {
		_, err := parseMessage([]byte("this line is not a header\r\n\r\nbody\r\n"))

		assert.Error(t, err)
	})
}
