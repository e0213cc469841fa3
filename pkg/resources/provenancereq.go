package resources

type SignAssetBody struct {
	GeneratorID string            `json:"generator_id"`
	AssetHash   []byte            `json:"asset_hash"`
	Metadata    map[string]string `json:"metadata"`
}

type VerifyManifestBody struct {
	Manifest []byte `json:"manifest"`
	Asset    []byte `json:"asset"`
}
