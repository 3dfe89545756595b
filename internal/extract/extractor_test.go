package extract

import (
	"errors"
	"testing"

	"tenderscan/internal/tender"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingPage = `<html><body>
<table class="search-results">
  <tr><th>Тендер</th><th>Организатор</th><th>Опубликовано</th><th>Окончание</th></tr>
  <tr>
    <td>
      <small>Закупка  №1</small>
      <a class="search-results-title" href="/market/tender-1/">Поставка
         бумаги</a>
      <div class="search-results-title-desc">Бумага А4</div>
    </td>
    <td><a href="/firms/1/">ООО Ромашка</a></td>
    <td>01.02.2025</td>
    <td> 15.02.2025 </td>
  </tr>
  <tr>
    <td><a class="search-results-title" href="https://www.b2b-center.ru/market/tender-2/#top">Ремонт</a></td>
    <td>—</td>
    <td>02.02.2025</td>
    <td>20.02.2025</td>
  </tr>
  <tr><td>only</td><td>three</td><td>cells</td></tr>
  <tr><td>no title link</td><td>x</td><td>y</td><td>z</td></tr>
</table>
</body></html>`

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := New("https://www.b2b-center.ru/market")
	require.NoError(t, err)
	return e
}

func TestExtract_ParsesTenderRows(t *testing.T) {
	e := newTestExtractor(t)

	records, err := e.Extract([]byte(listingPage))
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "Поставка бумаги", first.Title)
	assert.Equal(t, "ООО Ромашка", first.Company)
	assert.Equal(t, "01.02.2025", first.DateCreated)
	assert.Equal(t, "15.02.2025", first.DateDeadline)
	assert.Equal(t, "https://www.b2b-center.ru/market/tender-1/", first.URL)
	require.NotNil(t, first.Category)
	assert.Equal(t, "Закупка №1", *first.Category)
	require.NotNil(t, first.Description)
	assert.Equal(t, "Бумага А4", *first.Description)

	second := records[1]
	assert.Equal(t, "https://www.b2b-center.ru/market/tender-2/", second.URL)
	assert.Equal(t, DefaultCompany, second.Company)
	assert.Nil(t, second.Category)
	assert.Nil(t, second.Description)
}

func TestExtract_EmptyTableIsValidEmptyResult(t *testing.T) {
	e := newTestExtractor(t)

	records, err := e.Extract([]byte(`<html><body><table><tr><th>h</th></tr></table></body></html>`))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestExtract_EmptyMarkerIsValidEmptyResult(t *testing.T) {
	e := newTestExtractor(t)

	records, err := e.Extract([]byte(`<html><body><div class="search-results-empty">Ничего не найдено</div></body></html>`))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestExtract_Malformed(t *testing.T) {
	e := newTestExtractor(t)

	for name, body := range map[string]string{
		"empty":       "",
		"whitespace":  "  \n\t ",
		"no scaffold": `<html><body><p>Service temporarily unavailable</p></body></html>`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := e.Extract([]byte(body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tender.ErrMalformedPage))
			assert.Equal(t, tender.KindMalformed, tender.KindOf(err))
		})
	}
}

func TestExtract_Idempotent(t *testing.T) {
	e := newTestExtractor(t)

	first, err := e.Extract([]byte(listingPage))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := e.Extract([]byte(listingPage))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestNew_RejectsRelativeOrigin(t *testing.T) {
	_, err := New("/market")
	assert.Error(t, err)
}
