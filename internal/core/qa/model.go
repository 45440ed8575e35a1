package qa

import "sync"

// Reference は回答の根拠として引用されたファイルを表す
type Reference struct {
	FilePath   string  `json:"filePath"`
	Content    string  `json:"content"`
	Summary    string  `json:"summary"`
	Similarity float64 `json:"similarity"`
}

// CostUsage はトークン使用量と推定コストを表す
type CostUsage struct {
	PromptTokens     int     `json:"promptTokens"`
	CompletionTokens int     `json:"completionTokens"`
	TotalTokens      int     `json:"totalTokens"`
	EstimatedCost    float64 `json:"estimatedCost"`
}

// Answer はストリーミング回答と引用ファイル、遅延確定するコストを持つ
// Output はトークン単位で閉じられるまで読み取れる。Cost は上流の
// ストリームが完了した後に1件だけ届く。途中で読むのをやめる場合は
// Close を呼ぶこと。Close後も上流の生成とコスト精算は完了まで進む
type Answer struct {
	Output     <-chan string
	References []*Reference
	Cost       <-chan CostUsage

	closeOnce sync.Once
	done      chan struct{}
}

// Close はストリームの購読を打ち切る
// 上流の生成呼び出しとクレジット精算は中断されない
func (a *Answer) Close() {
	a.closeOnce.Do(func() {
		close(a.done)
	})
}
