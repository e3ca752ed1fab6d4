package repo

import "testing"

func TestMetadataFieldsParsesKeyValue(t *testing.T) {
	fields := metadataFields([]byte("VersionId=1\nStart=1.14.4\n"))
	if fields["VersionId"] != "1" || fields["Start"] != "1.14.4" {
		t.Errorf("unexpected fields: %+v", fields)
	}
}

func TestMetadataFieldsIgnoresBlankLines(t *testing.T) {
	fields := metadataFields([]byte("VersionId=1\n\nStart=1.14.4\n"))
	if len(fields) != 2 {
		t.Errorf("expected 2 fields, got %+v", fields)
	}
}
