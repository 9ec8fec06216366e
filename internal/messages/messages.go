// Package messages defines the JSON payloads exchanged between pipeline
// stages. Field names are part of the wire contract; unknown fields are
// ignored on decode, missing required fields make a message poison.
package messages

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrPoison marks a message that can never be processed. Consumers nack it
// without requeue.
var ErrPoison = errors.New("poison message")

// FrameMessage is published by the capture worker for every sampled frame.
// Timestamps are epoch seconds, durations are seconds.
type FrameMessage struct {
	ObjectKey           string  `json:"object_key"`
	FrameUUID           string  `json:"frame_uuid"`
	TagVideo            string  `json:"tag_video"`
	DataCapturaFrame    string  `json:"data_captura_frame"`
	InicioProcessamento float64 `json:"inicio_processamento"`
	TempoCapturaFrame   float64 `json:"tempo_captura_frame"`
	Timestamp           float64 `json:"timestamp"`
	FPS                 float64 `json:"fps"`
	Duracao             float64 `json:"duracao"`
	FimCaptura          float64 `json:"fim_captura"`
}

// DetectionMessage is published by the detection worker, one per kept face
// crop. ObjectKey points at the crop, not the source frame.
type DetectionMessage struct {
	ObjectKey           string  `json:"object_key"`
	FrameUUID           string  `json:"frame_uuid"`
	TagVideo            string  `json:"tag_video"`
	DataCapturaFrame    string  `json:"data_captura_frame"`
	InicioProcessamento float64 `json:"inicio_processamento"`
	TempoCapturaFrame   float64 `json:"tempo_captura_frame"`
	Timestamp           float64 `json:"timestamp"`
	FPS                 float64 `json:"fps"`
	Duracao             float64 `json:"duracao"`
	FimCaptura          float64 `json:"fim_captura"`

	TempoDeteccao              float64 `json:"tempo_deteccao"`
	FrameTotalFaces            int     `json:"frame_total_faces"`
	TempoEsperaCapturaDeteccao float64 `json:"tempo_espera_captura_deteccao"`
	InicioDeteccao             float64 `json:"inicio_deteccao"`
	FimDeteccao                float64 `json:"fim_deteccao"`
}

// RecognitionMessage is published by the recognition worker once per
// resolved face.
type RecognitionMessage struct {
	ObjectKey           string  `json:"object_key"`
	FrameUUID           string  `json:"frame_uuid"`
	TagVideo            string  `json:"tag_video"`
	DataCapturaFrame    string  `json:"data_captura_frame"`
	InicioProcessamento float64 `json:"inicio_processamento"`
	TempoCapturaFrame   float64 `json:"tempo_captura_frame"`
	Timestamp           float64 `json:"timestamp"`
	FPS                 float64 `json:"fps"`
	Duracao             float64 `json:"duracao"`
	FimCaptura          float64 `json:"fim_captura"`

	TempoDeteccao              float64 `json:"tempo_deteccao"`
	FrameTotalFaces            int     `json:"frame_total_faces"`
	TempoEsperaCapturaDeteccao float64 `json:"tempo_espera_captura_deteccao"`
	InicioDeteccao             float64 `json:"inicio_deteccao"`
	FimDeteccao                float64 `json:"fim_deteccao"`

	ReconhecimentoPath                string   `json:"reconhecimento_path"`
	UUID                              string   `json:"uuid"`
	Tags                              []string `json:"tags"`
	TempoReconhecimento               float64  `json:"tempo_reconhecimento"`
	TempoEsperaDeteccaoReconhecimento float64  `json:"tempo_espera_deteccao_reconhecimento"`
	InicioReconhecimento              float64  `json:"inicio_reconhecimento"`
	FimReconhecimento                 float64  `json:"fim_reconhecimento"`
}

// DecodeFrame parses and validates a frames-queue payload.
func DecodeFrame(body []byte) (*FrameMessage, error) {
	var m FrameMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPoison, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// DecodeDetection parses and validates a detections-queue payload.
func DecodeDetection(body []byte) (*DetectionMessage, error) {
	var m DetectionMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPoison, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// DecodeRecognition parses and validates a recognitions-queue payload.
func DecodeRecognition(body []byte) (*RecognitionMessage, error) {
	var m RecognitionMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPoison, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *FrameMessage) Validate() error {
	switch {
	case m.ObjectKey == "":
		return fmt.Errorf("%w: missing object_key", ErrPoison)
	case m.FrameUUID == "":
		return fmt.Errorf("%w: missing frame_uuid", ErrPoison)
	case m.TagVideo == "":
		return fmt.Errorf("%w: missing tag_video", ErrPoison)
	}
	return nil
}

func (m *DetectionMessage) Validate() error {
	switch {
	case m.ObjectKey == "":
		return fmt.Errorf("%w: missing object_key", ErrPoison)
	case m.FrameUUID == "":
		return fmt.Errorf("%w: missing frame_uuid", ErrPoison)
	case m.TagVideo == "":
		return fmt.Errorf("%w: missing tag_video", ErrPoison)
	case m.FrameTotalFaces < 1:
		return fmt.Errorf("%w: frame_total_faces %d", ErrPoison, m.FrameTotalFaces)
	}
	return nil
}

func (m *RecognitionMessage) Validate() error {
	switch {
	case m.UUID == "":
		return fmt.Errorf("%w: missing uuid", ErrPoison)
	case m.ReconhecimentoPath == "":
		return fmt.Errorf("%w: missing reconhecimento_path", ErrPoison)
	case m.FrameUUID == "":
		return fmt.Errorf("%w: missing frame_uuid", ErrPoison)
	case m.TagVideo == "":
		return fmt.Errorf("%w: missing tag_video", ErrPoison)
	case m.FrameTotalFaces < 1:
		return fmt.Errorf("%w: frame_total_faces %d", ErrPoison, m.FrameTotalFaces)
	}
	return nil
}
