// Package data owns the metadata store: identities, presences, per-frame
// aggregates and the per-tag sequence counters, all backed by MongoDB.
package data

// Identity is one person cluster ("pessoa"). ImagePaths and Embeddings grow
// in lockstep: every append writes both arrays in a single update.
type Identity struct {
	UUID           string      `bson:"uuid"`
	ImagePaths     []string    `bson:"image_paths"`
	Embeddings     [][]float64 `bson:"embeddings"`
	Tags           []string    `bson:"tags"`
	LastAppearance float64     `bson:"last_appearance,omitempty"`
}

// Presence is one immutable recognition event ("presenca").
type Presence struct {
	TimestampInicial           float64  `bson:"timestamp_inicial"`
	TimestampFinal             float64  `bson:"timestamp_final"`
	DataCapturaFrame           string   `bson:"data_captura_frame"`
	InicioProcessamento        float64  `bson:"inicio_processamento"`
	FimProcessamento           float64  `bson:"fim_processamento"`
	TempoProcessamentoTotal    float64  `bson:"tempo_processamento_total"`
	TempoCapturaFrame          float64  `bson:"tempo_captura_frame"`
	TempoDeteccao              float64  `bson:"tempo_deteccao"`
	TempoReconhecimento        float64  `bson:"tempo_reconhecimento"`
	Pessoa                     string   `bson:"pessoa"`
	FotoCaptura                string   `bson:"foto_captura"`
	Tags                       []string `bson:"tags"`
	TagVideo                   string   `bson:"tag_video"`
	Timestamp                  float64  `bson:"timestamp"`
	TempoEsperaCapturaDeteccao float64  `bson:"tempo_espera_captura_deteccao"`
	TempoEsperaDetRec          float64  `bson:"tempo_espera_deteccao_reconhecimento"`
	TempoFilaReal              float64  `bson:"tempo_fila_real"`
}

// FrameAggregate is the per-frame summary row. Immutable fields are set once
// on insert; counters and the presence list grow afterwards.
type FrameAggregate struct {
	UUID                   string   `bson:"uuid"`
	TagVideo               string   `bson:"tag_video"`
	NumeroFrame            int      `bson:"numero_frame"`
	FPS                    float64  `bson:"fps"`
	Duracao                float64  `bson:"duracao"`
	TotalFacesDetectadas   int      `bson:"total_faces_detectadas"`
	TotalFacesReconhecidas int      `bson:"total_faces_reconhecidas"`
	ListaPresencas         []string `bson:"lista_presencas"`
}
