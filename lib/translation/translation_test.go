package translation

import (
	"testing"

	"github.com/leonelquinteros/gotext"
	"github.com/stretchr/testify/assert"
)

func TestTranslateIndonesian(t *testing.T) {
	gotext.Configure("../../locales", "id", "default")

	assert.Equal(t, "id", GetLanguage())
	assert.Equal(t, "🟢 Aktif", Translate("🟢 Active"))
	assert.Equal(t, "✅ Alert 7 berhasil dihapus!", Translate("✅ Alert %d deleted!", 7))
}

func TestTranslateFallsBackToMessageID(t *testing.T) {
	gotext.Configure("../../locales", "en", "default")

	assert.Equal(t, "en", GetLanguage())
	assert.Equal(t, "✅ Alert 7 deleted!", Translate("✅ Alert %d deleted!", 7))
}
