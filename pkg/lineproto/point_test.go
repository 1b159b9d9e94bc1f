package lineproto

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestPointString(t *testing.T) {
	assert.Equal(t, "temp,room=lab value=23.500000", NewPoint("temp,room=lab", 23.5).String())
	assert.Equal(t, "temp value=-1.200000", NewPoint("temp", -1.2).String())
	assert.Equal(t, "temp value=0.000000", NewPoint("temp", 0).String())
}

func TestPointSeriesIsVerbatim(t *testing.T) {
	series := `weird name,tag=a b,=broken`
	assert.Equal(t, series+" value=1.000000", NewPoint(series, 1).String())
}

func TestSplitSeries(t *testing.T) {
	name, tags := SplitSeries("temperature,room=kitchen,sensor=ds18b20")
	assert.Equal(t, "temperature", name)
	assert.Equal(t, []Tag{{"room", "kitchen"}, {"sensor", "ds18b20"}}, tags)
}

func TestSplitSeriesEscapes(t *testing.T) {
	name, tags := SplitSeries(`cpu\,load,host=a\ b,path=x\=y`)
	assert.Equal(t, "cpu,load", name)
	assert.Equal(t, []Tag{{"host", "a b"}, {"path", "x=y"}}, tags)
}

func TestSplitSeriesSkipsMalformedTags(t *testing.T) {
	name, tags := SplitSeries("temp,noequals,=novalue,ok=1")
	assert.Equal(t, "temp", name)
	assert.Equal(t, []Tag{{"ok", "1"}}, tags)
}

func TestSplitSeriesEmpty(t *testing.T) {
	name, tags := SplitSeries("")
	assert.Equal(t, "", name)
	assert.Nil(t, tags)
}
