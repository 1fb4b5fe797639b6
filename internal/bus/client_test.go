package bus

import "testing"

func TestExtractSerial(t *testing.T) {
	serial, ok := extractSerial("lidar2d/lidar-A1/scans", "scans")
	if !ok || serial != "lidar-A1" {
		t.Fatalf("expected (lidar-A1, true), got (%q, %v)", serial, ok)
	}
}

func TestExtractSerialWrongSuffix(t *testing.T) {
	if _, ok := extractSerial("lidar2d/lidar-A1/scans", "saveLidarConfig"); ok {
		t.Fatal("expected extraction to fail on suffix mismatch")
	}
}

func TestTopicPrefixDeviceAgnostic(t *testing.T) {
	if got := topicPrefix("", "provideLidarConfig"); got != "lidar2d/provideLidarConfig" {
		t.Errorf("unexpected topic: %q", got)
	}
}

func TestTopicPrefixPerDevice(t *testing.T) {
	if got := topicPrefix("lidar-A1", "trackedPoints"); got != "lidar2d/lidar-A1/trackedPoints" {
		t.Errorf("unexpected topic: %q", got)
	}
}
