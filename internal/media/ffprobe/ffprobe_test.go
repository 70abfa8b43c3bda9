package ffprobe

import (
	"errors"
	"testing"

	"nativize/internal/services"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", Width: 1920, Height: 1080},
			{CodecType: "audio", Channels: 2},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 1 {
		t.Fatalf("expected 1 audio stream, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	video, ok := result.FirstStream("video")
	if !ok || video.Height != 1080 {
		t.Fatalf("unexpected first video stream: %+v ok=%v", video, ok)
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
		},
	}
	if result.DurationSeconds() != 0 {
		t.Fatalf("expected duration 0, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
}

func TestValidateSource(t *testing.T) {
	good := Result{
		Streams: []Stream{{CodecType: "video"}, {CodecType: "audio"}},
		Format:  Format{Duration: "60.0"},
	}
	if err := good.ValidateSource(); err != nil {
		t.Fatalf("expected valid source: %v", err)
	}

	cases := map[string]Result{
		"no video": {
			Streams: []Stream{{CodecType: "audio"}},
			Format:  Format{Duration: "60.0"},
		},
		"no audio": {
			Streams: []Stream{{CodecType: "video"}},
			Format:  Format{Duration: "60.0"},
		},
		"no duration": {
			Streams: []Stream{{CodecType: "video"}, {CodecType: "audio"}},
		},
	}
	for name, result := range cases {
		err := result.ValidateSource()
		if !errors.Is(err, services.ErrContent) {
			t.Fatalf("%s: expected content error, got %v", name, err)
		}
		if services.Retriable(err) {
			t.Fatalf("%s: source validation failures must be fatal", name)
		}
	}
}
